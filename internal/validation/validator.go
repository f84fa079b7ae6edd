// Package validation checks the identifiers the SDK sends to the service.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxIDLength is the maximum length for collection, environment,
	// feature, and property ids.
	MaxIDLength = 64

	// MaxEntityIDLength bounds the caller-supplied entity id.
	MaxEntityIDLength = 256
)

// idPattern matches alphanumeric characters, underscores, hyphens, and dots.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// ValidateID checks one service-facing identifier. kind names the field
// in the error message.
func ValidateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%s id is required", kind)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s id exceeds %d characters", kind, MaxIDLength)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s id may only contain letters, digits, '.', '_', and '-'", kind)
	}
	return nil
}

// ValidateEntityID checks the evaluation subject's id. Entity ids come
// from application code and only need to be non-empty and bounded.
func ValidateEntityID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("entity id is required")
	}
	if len(id) > MaxEntityIDLength {
		return fmt.Errorf("entity id exceeds %d characters", MaxEntityIDLength)
	}
	return nil
}
