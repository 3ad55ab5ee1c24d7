// Package session owns the lifecycle of one dictation act end to end:
// hotkey activation, focus capture, audio buffering, transcription
// handoff and text injection, with a single goroutine driving every
// state transition.
package session

import (
	"errors"
	"fmt"
	"time"
)

// State is the controller's position in the dictation pipeline.
type State int

const (
	// Idle means no session exists; the next Activate starts one.
	Idle State = iota
	// Capturing means audio is streaming into the session's buffer.
	Capturing
	// Transcribing means the frozen recording is with the engine.
	Transcribing
	// Injecting means finalized text is being delivered to the target.
	Injecting
	// Failed is a transient reporting state; the machine returns to Idle
	// immediately after the failure transition is published.
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Transcribing:
		return "transcribing"
	case Injecting:
		return "injecting"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrSessionActive reports an activation that arrived while a session
// was already in flight. The activation is rejected; the running session
// is unaffected.
var ErrSessionActive = errors.New("session: another session is active")

// ErrCancelled reports a session ended by explicit cancellation.
var ErrCancelled = errors.New("session: cancelled")

// Transition is one observable state change, published to subscribers so
// an external surface can render pipeline progress. A rejected
// activation is published with From == To and ErrSessionActive.
type Transition struct {
	SessionID string
	From, To  State
	Err       error
	At        time.Time
}
