package hotkey

import "time"

// Event is a high-level activation event emitted to the session controller.
type Event int

const (
	EventNone Event = iota
	EventActivate
	EventDeactivate
)

func (e Event) String() string {
	switch e {
	case EventActivate:
		return "activate"
	case EventDeactivate:
		return "deactivate"
	default:
		return "none"
	}
}

// KeyEvent is a normalized key transition fed into the matcher.
type KeyEvent struct {
	Code uint16
	Down bool
}

// DefaultDebounce is the window within which repeated toggle presses are
// coalesced into a single transition.
const DefaultDebounce = 250 * time.Millisecond

// matcher turns raw key transitions into Activate/Deactivate events for one
// binding. It is pure state; the Watcher owns synchronization.
type matcher struct {
	binding  Binding
	debounce time.Duration
	now      func() time.Time

	down       map[uint16]bool // watched keys currently held
	active     bool            // activation delivered (hold) / recording on (toggle)
	chordHeld  bool            // full combination currently satisfied
	lastToggle time.Time
}

func newMatcher(b Binding, debounce time.Duration) *matcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &matcher{
		binding:  b,
		debounce: debounce,
		now:      time.Now,
		down:     make(map[uint16]bool),
	}
}

// feed processes one key transition and returns the event it produces, if
// any. Key repeats for held keys and unwatched keys produce no event.
func (m *matcher) feed(ev KeyEvent) Event {
	if !m.binding.watches(ev.Code) {
		return EventNone
	}

	if ev.Down {
		if m.down[ev.Code] {
			// Key repeat while held.
			return EventNone
		}
		m.down[ev.Code] = true
		if !m.allDown() {
			return EventNone
		}
		return m.chordPressed()
	}

	if !m.down[ev.Code] {
		return EventNone
	}
	delete(m.down, ev.Code)
	return m.chordReleased()
}

func (m *matcher) allDown() bool {
	return len(m.down) == len(m.binding.codes)
}

// chordPressed handles the transition where the full combination has just
// been satisfied.
func (m *matcher) chordPressed() Event {
	if m.chordHeld {
		return EventNone
	}
	m.chordHeld = true

	switch m.binding.Mode {
	case ModeHold:
		if m.active {
			return EventNone
		}
		m.active = true
		return EventActivate
	case ModeToggle:
		now := m.now()
		if now.Sub(m.lastToggle) < m.debounce {
			// Rapid double press collapses into the previous toggle.
			return EventNone
		}
		m.lastToggle = now
		m.active = !m.active
		if m.active {
			return EventActivate
		}
		return EventDeactivate
	}
	return EventNone
}

// chordReleased handles the first release of any member key.
func (m *matcher) chordReleased() Event {
	wasHeld := m.chordHeld
	m.chordHeld = false

	if m.binding.Mode == ModeHold && wasHeld && m.active {
		m.active = false
		return EventDeactivate
	}
	return EventNone
}

// reset clears all transient key state, keeping toggle activation so that a
// rebind mid-press does not emit spurious events.
func (m *matcher) reset() {
	m.down = make(map[uint16]bool)
	m.chordHeld = false
	if m.binding.Mode == ModeHold {
		m.active = false
	}
}
