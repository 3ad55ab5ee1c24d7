// Package hotkey provides global hotkey detection independent of which
// application has keyboard focus.
package hotkey

import (
	"fmt"
	"slices"
	"strings"

	hook "github.com/robotn/gohook"
)

// Mode determines how a binding translates key activity into events.
type Mode int

const (
	// ModeHold activates while the combination is held and deactivates the
	// instant any member key is released.
	ModeHold Mode = iota
	// ModeToggle alternates between activate and deactivate on successive
	// full-combination presses.
	ModeToggle
)

func (m Mode) String() string {
	switch m {
	case ModeHold:
		return "hold"
	case ModeToggle:
		return "toggle"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "hold" or "toggle".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hold":
		return ModeHold, nil
	case "toggle":
		return ModeToggle, nil
	default:
		return 0, fmt.Errorf("invalid hotkey mode: %q", s)
	}
}

// Binding is one watched key combination plus its activation mode.
// Exactly one binding is active at a time; it is replaced atomically by
// Watcher.Rebind and never mutated in place.
type Binding struct {
	Spec  string // original spec string, e.g. "ctrl+shift+space"
	Mode  Mode
	codes []uint16 // sorted, deduplicated key codes
}

// aliases maps spec names onto the key names gohook understands.
var aliases = map[string]string{
	"return":    "enter",
	"escape":    "esc",
	"caps_lock": "capslock",
	"capslock":  "capslock",
	"meta":      "cmd",
	"win":       "cmd",
	"control":   "ctrl",
	"option":    "alt",
}

// ParseBinding parses a "+"-separated combination like "ctrl+shift+space"
// into a Binding. Every part must resolve to a known key.
func ParseBinding(spec string, mode Mode) (Binding, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(spec)), "+")

	var codes []uint16
	for _, part := range parts {
		name := strings.TrimSpace(part)
		if name == "" {
			return Binding{}, fmt.Errorf("invalid hotkey %q: empty key name", spec)
		}
		if alias, ok := aliases[name]; ok {
			name = alias
		}
		code, ok := hook.Keycode[name]
		if !ok {
			return Binding{}, fmt.Errorf("invalid hotkey %q: unknown key %q", spec, name)
		}
		if !slices.Contains(codes, code) {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return Binding{}, fmt.Errorf("invalid hotkey %q: no keys", spec)
	}
	slices.Sort(codes)

	return Binding{Spec: spec, Mode: mode, codes: codes}, nil
}

// Codes returns the watched key codes. The returned slice must not be
// modified.
func (b Binding) Codes() []uint16 { return b.codes }

func (b Binding) watches(code uint16) bool {
	_, found := slices.BinarySearch(b.codes, code)
	return found
}
