package hotkey

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// CapabilityError reports that the OS-level global hook could not be
// installed, typically because the process lacks input-monitoring
// permission. It is fatal for the watcher: no events will ever be emitted
// and retrying without the permission cannot succeed.
type CapabilityError struct {
	Reason string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("hotkey: global hook unavailable: %s", e.Reason)
}

// hookEnableTimeout bounds the wait for the OS hook to come up.
const hookEnableTimeout = 5 * time.Second

// Watcher monitors global keyboard state for one binding and emits
// Activate/Deactivate events to a single consumer, regardless of which
// process has focus. Construct once at startup; the underlying OS hook is
// process-scoped.
type Watcher struct {
	mu      sync.Mutex
	matcher *matcher
	started bool

	events chan Event
	stop   chan struct{}
	done   chan struct{}
}

// NewWatcher creates a watcher for the given binding. Call Start to install
// the OS hook.
func NewWatcher(b Binding) *Watcher {
	return &Watcher{
		matcher: newMatcher(b, DefaultDebounce),
		events:  make(chan Event, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Events returns the ordered event channel consumed by the session
// controller. The channel is closed when the watcher stops.
func (w *Watcher) Events() <-chan Event { return w.events }

// Start installs the global keyboard hook and begins emitting events.
// If the hook does not come up within a bounded wait the watcher reports a
// CapabilityError and emits nothing; it does not retry.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("hotkey: watcher already started")
	}
	w.started = true
	w.mu.Unlock()

	raw := hook.Start()

	// The hook engine reports readiness as its first event. Missing
	// permission shows up as silence or an immediately closed channel.
	timeout := time.NewTimer(hookEnableTimeout)
	defer timeout.Stop()
	for {
		select {
		case ev, ok := <-raw:
			if !ok {
				return &CapabilityError{Reason: "hook terminated during startup"}
			}
			if ev.Kind == hook.HookEnabled {
				go w.loop(raw)
				slog.Info("hotkey watcher started", "binding", w.binding().Spec, "mode", w.binding().Mode)
				return nil
			}
			// Stray events before HookEnabled are possible; ignore them.
		case <-timeout.C:
			hook.End()
			return &CapabilityError{Reason: "hook did not engage, check input monitoring permission"}
		}
	}
}

// Stop tears down the OS hook and closes the event channel.
func (w *Watcher) Stop() {
	w.mu.Lock()
	started := w.started
	w.started = false
	w.mu.Unlock()
	if !started {
		return
	}

	close(w.stop)
	hook.End()
	<-w.done
}

// Rebind atomically replaces the watched combination. The session
// controller only calls this while no session is active, so dropping the
// transient key state is safe.
func (w *Watcher) Rebind(b Binding) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.matcher.binding = b
	w.matcher.reset()
	slog.Info("hotkey rebound", "binding", b.Spec, "mode", b.Mode)
}

func (w *Watcher) binding() Binding {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.matcher.binding
}

// loop translates raw hook events into matcher transitions on the
// listening thread and hands resulting events to the consumer channel.
func (w *Watcher) loop(raw chan hook.Event) {
	defer close(w.done)
	defer close(w.events)

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-raw:
			if !ok {
				return
			}
			ke, valid := normalize(ev)
			if !valid {
				continue
			}

			w.mu.Lock()
			out := w.matcher.feed(ke)
			w.mu.Unlock()

			if out == EventNone {
				continue
			}
			select {
			case w.events <- out:
			case <-w.stop:
				return
			}
		}
	}
}

// normalize reduces a raw hook event to a key transition. Mouse and wheel
// events are not part of any binding and are discarded.
func normalize(ev hook.Event) (KeyEvent, bool) {
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		return KeyEvent{Code: ev.Keycode, Down: true}, true
	case hook.KeyUp:
		return KeyEvent{Code: ev.Keycode, Down: false}, true
	default:
		return KeyEvent{}, false
	}
}
