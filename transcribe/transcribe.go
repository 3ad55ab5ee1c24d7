// Package transcribe converts finished recordings to text through an
// external speech-recognition engine, off the interactive path.
package transcribe

import (
	"fmt"
)

// FailureReason classifies transcription failures.
type FailureReason int

const (
	// ReasonEngineUnavailable means the engine binary or model is missing.
	ReasonEngineUnavailable FailureReason = iota
	// ReasonTooShort means the audio was below the usable minimum.
	ReasonTooShort
	// ReasonNoSpeech means the engine produced no text for the audio.
	ReasonNoSpeech
	// ReasonEngineFailed means the engine ran and reported an error.
	ReasonEngineFailed
)

func (r FailureReason) String() string {
	switch r {
	case ReasonEngineUnavailable:
		return "engine unavailable"
	case ReasonTooShort:
		return "audio too short"
	case ReasonNoSpeech:
		return "no speech recognized"
	case ReasonEngineFailed:
		return "engine failed"
	default:
		return fmt.Sprintf("FailureReason(%d)", int(r))
	}
}

// Error is a typed transcription failure. The session returns to idle and
// no injection is attempted.
type Error struct {
	Reason FailureReason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcribe: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transcribe: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Engine is the black-box inference function. Implementations may take
// from tens of milliseconds to several seconds and may be CPU/GPU bound.
type Engine interface {
	// Infer converts PCM samples to finalized text. language is a code
	// such as "en", or empty for auto-detection.
	Infer(samples []float32, sampleRate int, language string) (string, error)
}
