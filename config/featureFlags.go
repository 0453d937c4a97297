package config

import (
	"os"
	"strings"
)

// DraftLockingEnabled turns on redislock-guarded draft writes for shared
// backends. Without it, concurrent writers to the same draft key race and
// the last write wins.
//
// Set via env:
// - DRAFT_LOCKING=true
func DraftLockingEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DRAFT_LOCKING")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// OptimisticUpdatesFor enables optimistic cache updates per resource during
// incremental rollout.
//
// Set via env:
// - OPTIMISTIC_RESOURCES="ORDERS,PRODUCTS,REVIEWS"
//
// Resource keys are case-insensitive. Empty means all resources.
func OptimisticUpdatesFor(resource string) bool {
	resource = strings.ToUpper(strings.TrimSpace(resource))
	if resource == "" {
		return false
	}
	raw := os.Getenv("OPTIMISTIC_RESOURCES")
	if strings.TrimSpace(raw) == "" {
		return true
	}
	for _, part := range strings.Split(raw, ",") {
		if strings.ToUpper(strings.TrimSpace(part)) == resource {
			return true
		}
	}
	return false
}
