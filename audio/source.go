// Package audio acquires microphone input as a stream of fixed-format PCM
// frames. The format is fixed at construction and must match what the
// transcription engine expects; a mismatch is a configuration error.
package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyStarted is returned when Start is called on an open stream.
var ErrAlreadyStarted = errors.New("audio: capture already started")

// ErrNotStarted is returned when Stop is called on a closed stream.
var ErrNotStarted = errors.New("audio: capture not started")

// ErrUnsupported is returned on platforms without a capture implementation.
var ErrUnsupported = errors.New("audio: unsupported platform")

// DeviceError reports a device-level failure (busy, missing, permission).
// The user may retry by re-activating; the error is surfaced per attempt.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio: device %s failed: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Format describes the fixed PCM stream format.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is 16 kHz mono, the format Whisper-family engines expect.
func DefaultFormat() Format {
	return Format{SampleRate: 16000, Channels: 1}
}

// Frame is one timestamped chunk of samples in the range [-1, 1].
// Ownership transfers to the receiver; the slice is never reused.
type Frame struct {
	Samples []float32
	Time    time.Time
}

// frameQueueDepth bounds the handoff queue between the device callback
// thread and the consumer so the callback never blocks on buffer growth.
const frameQueueDepth = 64

// sourceImpl is the platform-specific capture implementation.
type sourceImpl interface {
	start(sampleRate int, cb func(samples []float32)) error
	stop() error
}

// Source opens the default input device and delivers frames to a channel.
// Only one stream may be open at a time.
type Source struct {
	format Format
	impl   sourceImpl

	mu         sync.Mutex
	started    bool
	delivering atomic.Bool
	frames     chan Frame
	dropped    atomic.Uint64
}

// NewSource creates a source for the default input device.
func NewSource(f Format) (*Source, error) {
	if f.SampleRate <= 0 {
		f.SampleRate = 16000
	}
	if f.Channels <= 0 {
		f.Channels = 1
	}

	impl, err := newSourceImpl()
	if err != nil {
		return nil, err
	}
	return &Source{format: f, impl: impl}, nil
}

// newTestSource wires a fake implementation for tests.
func newTestSource(f Format, impl sourceImpl) *Source {
	return &Source{format: f, impl: impl}
}

// Format returns the fixed stream format.
func (s *Source) Format() Format { return s.format }

// Frames returns the channel carrying captured frames for the current
// stream. A fresh channel is created by each Start; it is closed by Stop.
func (s *Source) Frames() <-chan Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Dropped returns how many frames were discarded because the consumer fell
// behind. Individual dropped frames are absorbed locally, not surfaced.
func (s *Source) Dropped() uint64 { return s.dropped.Load() }

// Start opens the device and begins delivery. The wait is bounded by ctx;
// a busy or missing device fails explicitly rather than blocking.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	frames := make(chan Frame, frameQueueDepth)
	s.frames = frames
	s.started = true
	s.mu.Unlock()

	s.delivering.Store(true)
	errc := make(chan error, 1)
	go func() {
		errc <- s.impl.start(s.format.SampleRate, func(samples []float32) {
			s.deliver(frames, samples)
		})
	}()

	select {
	case err := <-errc:
		if err != nil {
			s.delivering.Store(false)
			s.reset()
			return &DeviceError{Op: "open", Err: err}
		}
	case <-ctx.Done():
		// The device never came up in time; tear down whatever the
		// implementation managed to open.
		s.delivering.Store(false)
		go func() {
			<-errc
			_ = s.impl.stop()
		}()
		s.reset()
		return &DeviceError{Op: "open", Err: ctx.Err()}
	}

	return nil
}

// Stop halts delivery, releases the device and closes the frame channel.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	frames := s.frames
	s.frames = nil
	s.mu.Unlock()

	s.delivering.Store(false)
	// The implementation guarantees no callbacks fire after stop returns,
	// which makes closing the channel safe.
	err := s.impl.stop()
	close(frames)

	if n := s.dropped.Load(); n > 0 {
		slog.Warn("audio frames dropped during capture", "count", n)
	}
	if err != nil {
		return &DeviceError{Op: "close", Err: err}
	}
	return nil
}

// deliver runs on the device callback thread. It copies the samples and
// hands them off without ever blocking; when the queue is full the frame
// is dropped and counted.
func (s *Source) deliver(frames chan Frame, samples []float32) {
	if !s.delivering.Load() || len(samples) == 0 {
		return
	}

	owned := make([]float32, len(samples))
	copy(owned, samples)

	select {
	case frames <- Frame{Samples: owned, Time: time.Now()}:
	default:
		s.dropped.Add(1)
	}
}

func (s *Source) reset() {
	s.mu.Lock()
	s.started = false
	s.frames = nil
	s.mu.Unlock()
}
