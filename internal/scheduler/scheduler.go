// Package scheduler defines the scheduler interface and the factory registry for snooze.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/yairfalse/snooze/internal/filter"
	"github.com/yairfalse/snooze/pkg/resource"
)

var (
	// ErrNoResourceTags is returned when a run is attempted without a tag
	// filter. Running without one would act on every resource in the region.
	ErrNoResourceTags = errors.New("resource tags must be specified, otherwise every resource would be affected")

	// ErrUnknownAction is returned for an action the scheduler has no handler for.
	ErrUnknownAction = errors.New("unknown action")
)

// Scheduler toggles the power state of one kind of resource in one region.
type Scheduler interface {
	// Name returns the service name (e.g., "ec2", "autoscaling").
	Name() string

	// Region returns the region the scheduler operates in.
	Region() string

	// Run applies action to every resource matching tags.
	// Only configuration errors are returned; provider failures are
	// recorded on the report.
	Run(ctx context.Context, action resource.Action, tags resource.Tags) (*resource.Report, error)
}

// Options are shared by all schedulers.
type Options struct {
	MatchMode filter.Mode
	DryRun    bool
}

// Factory builds a scheduler for a region. An empty region means the
// provider's default region resolution.
type Factory func(ctx context.Context, region string, opts Options) (Scheduler, error)

var (
	registry = make(map[string]Factory)
	mu       sync.RWMutex
)

// Register adds a factory under a service name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Get returns the factory for a service name.
func Get(name string) (Factory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := registry[name]
	return f, ok
}

// Names returns all registered service names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all factories from the registry. Used for testing.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Factory)
}
