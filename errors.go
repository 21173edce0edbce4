package timekeeper

import (
	"errors"
	"fmt"
)

// Error classes for clock and recorder operations.
// Use errors.Is() to check error class, then inspect the error message for details.
//
// Error Classification:
//   - ErrConfig: Invalid construction parameters - fix the caller and retry
//   - ErrUsage: An operation was called in a state that does not allow it
//
// Out-of-range lookups and tiny record deltas are not errors; they are
// clamped or accumulated silently.
var (
	// ErrConfig indicates a constructor or option received invalid values.
	// Examples: non-positive sample interval, nil timer source, zero speed.
	ErrConfig = errors.New("configuration error")

	// ErrUsage indicates a caller logic bug at the time of the call.
	// Examples: Frame outside manual mode, SetSpeed with a non-positive value.
	ErrUsage = errors.New("usage error")
)

func wrapConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrConfig, msg)
}

func wrapConfigf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func wrapUsage(msg string) error {
	return fmt.Errorf("%w: %s", ErrUsage, msg)
}

func wrapUsagef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}
