package keys

import (
	"errors"
	"fmt"
)

var ErrInvalidTiming = errors.New("invalid timing")

// Timing controls when a credential is demanded.
type Timing int

const (
	TimingUnknown     Timing = iota
	TimingImmediately        // Challenge on every resume, lock on every background
	TimingOnQuit             // Challenge only on cold launch
)

// String returns the keyring representation of t
func (t Timing) String() string {
	switch t {
	case TimingImmediately:
		return "immediately"
	case TimingOnQuit:
		return "on-quit"
	default:
		return "unknown"
	}
}

// ParseTiming converts a stored or user-supplied value into a Timing.
// Unrecognised values yield TimingUnknown and ErrInvalidTiming.
func ParseTiming(s string) (Timing, error) {
	switch s {
	case "immediately":
		return TimingImmediately, nil
	case "on-quit", "onquit":
		return TimingOnQuit, nil
	default:
		return TimingUnknown, fmt.Errorf("%w: %q", ErrInvalidTiming, s)
	}
}
