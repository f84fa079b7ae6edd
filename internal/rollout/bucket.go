// Package rollout provides deterministic entity bucketing for partial
// segment-rule rollouts.
package rollout

import (
	"github.com/cespare/xxhash/v2"
)

// Bucket returns a deterministic bucket (0-99) for the given entity and
// resource (feature or property id). The same entityID + resourceID
// combination always returns the same bucket.
func Bucket(entityID, resourceID string) int {
	if entityID == "" {
		return -1 // Invalid: no entity context
	}
	key := entityID + ":" + resourceID
	hash := xxhash.Sum64String(key)
	return int(hash % 100) // Returns 0-99
}

// Within reports whether the entity falls inside the given rollout
// percentage for the resource.
func Within(entityID, resourceID string, percentage int) bool {
	if percentage >= 100 {
		return true
	}
	if percentage <= 0 {
		return false
	}
	bucket := Bucket(entityID, resourceID)
	return bucket >= 0 && bucket < percentage
}
