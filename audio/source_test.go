package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeImpl is a controllable capture implementation.
type fakeImpl struct {
	mu       sync.Mutex
	cb       func([]float32)
	startErr error
	blockFor time.Duration
	started  bool
}

func (f *fakeImpl) start(sampleRate int, cb func([]float32)) error {
	if f.blockFor > 0 {
		time.Sleep(f.blockFor)
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.cb = cb
	f.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeImpl) stop() error {
	f.mu.Lock()
	f.cb = nil
	f.started = false
	f.mu.Unlock()
	return nil
}

func (f *fakeImpl) emit(samples []float32) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(samples)
	}
}

func TestSourceStartStop(t *testing.T) {
	impl := &fakeImpl{}
	s := newTestSource(DefaultFormat(), impl)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}

	frames := s.Frames()
	impl.emit([]float32{0.1, 0.2, 0.3})

	select {
	case f := <-frames:
		if len(f.Samples) != 3 {
			t.Errorf("frame has %d samples, want 3", len(f.Samples))
		}
		if f.Time.IsZero() {
			t.Error("frame timestamp is zero")
		}
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, ok := <-frames; ok {
		t.Error("frame channel not closed after Stop")
	}
	if err := s.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("second Stop = %v, want ErrNotStarted", err)
	}
}

func TestSourceStartDeviceError(t *testing.T) {
	impl := &fakeImpl{startErr: errors.New("device busy")}
	s := newTestSource(DefaultFormat(), impl)

	err := s.Start(context.Background())
	var de *DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("Start = %v, want DeviceError", err)
	}

	// A failed open leaves the source reusable.
	impl.startErr = nil
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
	_ = s.Stop()
}

func TestSourceStartTimeout(t *testing.T) {
	impl := &fakeImpl{blockFor: 500 * time.Millisecond}
	s := newTestSource(DefaultFormat(), impl)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := s.Start(ctx)
	var de *DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("Start = %v, want DeviceError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause = %v, want DeadlineExceeded", err)
	}
}

func TestSourceDropsWhenQueueFull(t *testing.T) {
	impl := &fakeImpl{}
	s := newTestSource(DefaultFormat(), impl)

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Nobody consumes; overflow past the queue depth must not block the
	// callback thread.
	for i := 0; i < frameQueueDepth+10; i++ {
		impl.emit([]float32{0.5})
	}
	if got := s.Dropped(); got != 10 {
		t.Errorf("Dropped() = %d, want 10", got)
	}
	_ = s.Stop()
}

func TestSourceFrameOwnership(t *testing.T) {
	impl := &fakeImpl{}
	s := newTestSource(DefaultFormat(), impl)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	src := []float32{0.7}
	impl.emit(src)
	src[0] = -0.7 // callback buffer is reused by the device layer

	f := <-s.Frames()
	if f.Samples[0] != 0.7 {
		t.Errorf("frame aliases callback buffer: got %v", f.Samples[0])
	}
}
