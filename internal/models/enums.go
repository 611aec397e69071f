package models

import "fmt"

// FiberStatus is the fiber connectivity classification of a region.
type FiberStatus string

const (
	FiberActive      FiberStatus = "Active"
	FiberPlanned     FiberStatus = "Planned"
	FiberUnavailable FiberStatus = "Unavailable"
)

// ParseFiberStatus maps a string literal to its FiberStatus. The mapping is
// case-sensitive and closed; unknown literals are rejected, never coerced.
func ParseFiberStatus(s string) (FiberStatus, error) {
	switch FiberStatus(s) {
	case FiberActive, FiberPlanned, FiberUnavailable:
		return FiberStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

func (s FiberStatus) String() string {
	return string(s)
}
