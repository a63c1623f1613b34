// Snooze - scheduled stop and start of tagged AWS resources
package main

func main() {
	Execute()
}
