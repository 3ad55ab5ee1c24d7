// Package focus captures the identity of the foreground window so that
// transcribed text can be delivered back to it even after focus has moved.
package focus

import (
	"errors"
	"time"
)

// ErrUnsupported is returned on platforms without a tracker implementation.
var ErrUnsupported = errors.New("focus: unsupported platform")

// ErrNoForegroundWindow is returned when no window currently holds focus.
var ErrNoForegroundWindow = errors.New("focus: no foreground window")

// Target identifies the window that should receive injected text.
// It is captured at the instant a session starts, before this application
// can raise its own window, and is immutable afterward. A Target becomes
// stale if the referenced window closes; StillValid detects that.
type Target struct {
	PID        int32
	App        string
	CapturedAt time.Time
}

// Zero reports whether the target was never captured.
func (t Target) Zero() bool { return t.PID == 0 }

// Tracker snapshots and re-validates foreground windows. Both operations
// are pure queries; no OS state is mutated.
type Tracker interface {
	// Capture returns the current foreground window. It must be called
	// before the calling application raises any window of its own, or the
	// wrong target will be captured.
	Capture() (Target, error)

	// StillValid reports whether the target still exists and can
	// plausibly receive input. Called immediately before injection.
	StillValid(Target) bool
}
