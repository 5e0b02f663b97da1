package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Transform errors
	ErrDomain = errors.New("value outside transform domain")

	// Basis construction errors
	ErrInsufficientData = errors.New("insufficient data to estimate covariance")
	ErrVariableNotFound = errors.New("variable not found in dataset")

	// Conditioning errors
	ErrSingularCovariance   = errors.New("observed covariance block is singular")
	ErrNoObservedVariables  = errors.New("no basis variable present in dataset")
	ErrIncompatibleSchema   = errors.New("grouped basis members disagree on schema")
	ErrInvalidSubsample     = errors.New("invalid subsample definition")
	ErrInvalidMoments       = errors.New("invalid moment specification")
	ErrGroupBasisNotFound   = errors.New("no basis entry for group")
	ErrMissingGroupingValue = errors.New("grouping column has missing values")
)

// Error constructors with context

// NewDomainError reports a transform domain violation for a named variable.
func NewDomainError(variable VariableKey, transform string, value float64) error {
	return fmt.Errorf("%w: %s of %v for variable %s", ErrDomain, transform, value, variable)
}

// NewInsufficientDataError reports too few usable rows for the requested variable count.
func NewInsufficientDataError(rows, variables int) error {
	return fmt.Errorf("%w: %d usable rows for %d variables (need at least %d)",
		ErrInsufficientData, rows, variables, variables+1)
}

// NewSingularCovarianceError identifies the observed variable set whose block failed to factorize.
func NewSingularCovarianceError(observed []VariableKey) error {
	return fmt.Errorf("%w: observed variables %v", ErrSingularCovariance, observed)
}

// NewInvalidSubsampleError reports a malformed subsample definition by index.
func NewInvalidSubsampleError(index int, reason string) error {
	return fmt.Errorf("%w: definition %d: %s", ErrInvalidSubsample, index, reason)
}

// NewGroupError wraps an error with the group key it occurred in.
func NewGroupError(key GroupKey, err error) error {
	return fmt.Errorf("group %s: %w", key, err)
}

// Error checking helpers
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}

func IsInsufficientDataError(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsSingularCovarianceError(err error) bool {
	return errors.Is(err, ErrSingularCovariance)
}

func IsNoObservedVariablesError(err error) bool {
	return errors.Is(err, ErrNoObservedVariables)
}

func IsInvalidSubsampleError(err error) bool {
	return errors.Is(err, ErrInvalidSubsample)
}
