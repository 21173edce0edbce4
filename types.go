package timekeeper

import "strings"

// PauseReason identifies an independent caller that can hold the clock paused.
// Reasons are bit flags; the clock is paused while any flag is set.
type PauseReason uint8

const (
	// PauseUser is set by an explicit pause control.
	PauseUser PauseReason = 1 << iota

	// PauseFocus is set while the host window does not have focus.
	PauseFocus
)

func (r PauseReason) String() string {
	if r == 0 {
		return "none"
	}
	var names []string
	if r&PauseUser != 0 {
		names = append(names, "user")
	}
	if r&PauseFocus != 0 {
		names = append(names, "focus")
	}
	if rest := r &^ (PauseUser | PauseFocus); rest != 0 {
		names = append(names, "other")
	}
	return strings.Join(names, "|")
}

// Mode describes how virtual time advances.
type Mode int

const (
	// ModeLive tracks the wall clock scaled by the clock speed.
	ModeLive Mode = iota

	// ModeManual advances only through explicit Frame calls.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// TimerID identifies a timeout scheduled with SetTimeout.
// IDs increase monotonically for the life of a clock; zero is never issued.
type TimerID uint64
