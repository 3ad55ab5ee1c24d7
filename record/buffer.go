// Package record accumulates audio frames for the duration of one
// dictation session. A Buffer is exclusively owned by the session that
// created it and is either finalized into an immutable Clip or discarded.
package record

import (
	"errors"
	"fmt"
	"time"

	"go.localvoice.app/localvoice/audio"
)

// ErrTooShort reports a recording below the configured minimum duration.
// Such recordings never reach transcription.
var ErrTooShort = errors.New("record: recording too short")

// ErrFinalized is returned when a finalized or discarded buffer is reused.
var ErrFinalized = errors.New("record: buffer already finalized")

// Buffer collects frames for one session. It is not internally
// synchronized: the session's capture loop is the only writer, and the
// controller finalizes or discards only after joining that loop.
type Buffer struct {
	sampleRate int
	min, max   time.Duration
	maxSamples int

	samples   []float32
	finalized bool
	full      bool
}

// NewBuffer creates a buffer enforcing the given duration bounds.
// min rejects too-short recordings at Finalize; max caps accumulation so
// a forgotten hotkey cannot grow memory forever.
func NewBuffer(sampleRate int, min, max time.Duration) *Buffer {
	maxSamples := int(max.Seconds() * float64(sampleRate))
	return &Buffer{
		sampleRate: sampleRate,
		min:        min,
		max:        max,
		maxSamples: maxSamples,
		samples:    make([]float32, 0, maxSamples/4+1),
	}
}

// Append adds one frame. It returns false once the maximum duration has
// been reached; the caller must then stop the session (auto-stop). The
// final frame is clamped so the buffer holds exactly the maximum.
func (b *Buffer) Append(f audio.Frame) bool {
	if b.finalized || b.full {
		return false
	}

	remaining := b.maxSamples - len(b.samples)
	if len(f.Samples) >= remaining {
		b.samples = append(b.samples, f.Samples[:remaining]...)
		b.full = true
		return false
	}
	b.samples = append(b.samples, f.Samples...)
	return true
}

// Duration returns the duration of audio accumulated so far.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(len(b.samples)) * time.Second / time.Duration(b.sampleRate)
}

// Finalize freezes the buffer and returns an immutable clip safe to hand
// to another execution context. A recording shorter than the minimum
// returns ErrTooShort; a recording exactly at the maximum is valid.
func (b *Buffer) Finalize() (Clip, error) {
	if b.finalized {
		return Clip{}, ErrFinalized
	}
	b.finalized = true

	d := b.Duration()
	if d < b.min {
		b.samples = nil
		return Clip{}, fmt.Errorf("%w: %v < %v", ErrTooShort, d, b.min)
	}

	clip := Clip{samples: b.samples, sampleRate: b.sampleRate, duration: d}
	b.samples = nil // ownership moves to the clip
	return clip, nil
}

// Discard drops the accumulated audio without producing a clip. Used when
// a session is cancelled before stop.
func (b *Buffer) Discard() {
	b.finalized = true
	b.samples = nil
}

// Clip is a frozen recording. It is immutable once produced.
type Clip struct {
	samples    []float32
	sampleRate int
	duration   time.Duration
}

// Samples returns the PCM data. Callers must not modify the slice.
func (c Clip) Samples() []float32 { return c.samples }

// SampleRate returns the clip's sample rate.
func (c Clip) SampleRate() int { return c.sampleRate }

// Duration returns the clip length.
func (c Clip) Duration() time.Duration { return c.duration }

// Empty reports whether the clip holds no audio.
func (c Clip) Empty() bool { return len(c.samples) == 0 }
