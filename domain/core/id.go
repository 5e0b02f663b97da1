package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID       ID
	BasisID     ID
	VariableKey ID
)

// String conversions for domain IDs
func (id RunID) String() string      { return ID(id).String() }
func (id BasisID) String() string    { return ID(id).String() }
func (k VariableKey) String() string { return ID(k).String() }

// ParseVariableKey parses a string into VariableKey
func ParseVariableKey(s string) (VariableKey, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("variable key cannot be empty")
	}
	return VariableKey(s), nil
}

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// GroupKey is the canonical encoding of a grouping-key tuple. Component
// values are joined with a unit separator so composite keys stay
// comparable and usable as map keys.
type GroupKey string

const groupKeySep = "\x1f"

// NewGroupKey builds a GroupKey from ordered component values
func NewGroupKey(values ...string) GroupKey {
	return GroupKey(strings.Join(values, groupKeySep))
}

// Values splits the key back into its ordered components
func (k GroupKey) Values() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k), groupKeySep)
}

// String renders the key for error messages and reports
func (k GroupKey) String() string {
	return strings.Join(k.Values(), "/")
}
