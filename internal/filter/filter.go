// Package filter decides whether a resource's tags satisfy the configured tag filter.
package filter

import (
	"fmt"
	"strings"

	"github.com/yairfalse/snooze/pkg/resource"
)

// Mode selects the tag matching semantics.
type Mode string

const (
	// ModeLegacy keeps the first-tag-dominant behaviour existing schedules rely on.
	ModeLegacy Mode = "legacy"
	// ModeStrict requires every required tag to be present with an equal value.
	ModeStrict Mode = "strict"
)

// ParseMode validates a configured mode. Empty means legacy.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeLegacy, nil
	case ModeLegacy, ModeStrict:
		return m, nil
	default:
		return "", fmt.Errorf("unknown tag match mode %q (want legacy or strict)", s)
	}
}

// Matches compares resource tags against required tags the way the
// scheduler always has. The running result is only switched on while
// looking at the first required tag; later required tags can only turn it
// off when their key is present with another value. A missing first
// required tag therefore always fails, while a missing later tag is ignored.
func Matches(instanceTags, requiredTags resource.Tags) bool {
	matched := false
	for i, required := range requiredTags {
		for _, tag := range instanceTags {
			if tag.Key != required.Key {
				continue
			}
			if i == 0 {
				matched = true
			}
			matched = matched && tag.Value == required.Value
		}
	}
	return matched
}

// MatchAll reports whether every required tag is present in instanceTags
// with an equal value. An empty required set never matches.
func MatchAll(instanceTags, requiredTags resource.Tags) bool {
	if len(requiredTags) == 0 {
		return false
	}
	for _, required := range requiredTags {
		v, ok := instanceTags.Get(required.Key)
		if !ok || v != required.Value {
			return false
		}
	}
	return true
}

// Match applies the mode to resource tags and the configured filter.
func (m Mode) Match(instanceTags, requiredTags resource.Tags) bool {
	if m == ModeStrict {
		return MatchAll(instanceTags, requiredTags)
	}
	return Matches(instanceTags, requiredTags)
}

// MatchGroup is Match for auto-scaling groups. In legacy mode the group
// scheduler has always passed the configured tags first, so the group's
// own tags act as the required set; strict mode uses the natural order.
func (m Mode) MatchGroup(groupTags, requiredTags resource.Tags) bool {
	if m == ModeStrict {
		return MatchAll(groupTags, requiredTags)
	}
	return Matches(requiredTags, groupTags)
}
