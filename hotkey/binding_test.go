package hotkey

import "testing"

func TestParseBinding(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		mode    Mode
		wantErr bool
		keys    int
	}{
		{"single_key", "space", ModeHold, false, 1},
		{"combination", "ctrl+shift+space", ModeHold, false, 3},
		{"alias_return", "ctrl+return", ModeToggle, false, 2},
		{"case_insensitive", "Ctrl+Shift+F5", ModeHold, false, 3},
		{"duplicate_key", "ctrl+ctrl+space", ModeHold, false, 2},
		{"unknown_key", "ctrl+nosuchkey", ModeHold, true, 0},
		{"empty", "", ModeHold, true, 0},
		{"trailing_plus", "ctrl+", ModeHold, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := ParseBinding(tt.spec, tt.mode)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseBinding(%q) expected error", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBinding(%q): %v", tt.spec, err)
			}
			if len(b.Codes()) != tt.keys {
				t.Errorf("got %d codes, want %d", len(b.Codes()), tt.keys)
			}
			if b.Mode != tt.mode {
				t.Errorf("Mode = %v, want %v", b.Mode, tt.mode)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("hold"); err != nil || m != ModeHold {
		t.Errorf("ParseMode(hold) = %v, %v", m, err)
	}
	if m, err := ParseMode("Toggle"); err != nil || m != ModeToggle {
		t.Errorf("ParseMode(Toggle) = %v, %v", m, err)
	}
	if _, err := ParseMode("press"); err == nil {
		t.Error("ParseMode(press) expected error")
	}
}

func TestBindingWatches(t *testing.T) {
	b, err := ParseBinding("ctrl+space", ModeHold)
	if err != nil {
		t.Fatalf("ParseBinding: %v", err)
	}
	for _, code := range b.Codes() {
		if !b.watches(code) {
			t.Errorf("watches(%d) = false, want true", code)
		}
	}
	if b.watches(0xFFFF) {
		t.Error("watches(0xFFFF) = true, want false")
	}
}
