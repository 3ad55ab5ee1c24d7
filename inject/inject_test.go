package inject

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.localvoice.app/localvoice/focus"
)

type fakeOps struct {
	clipboard     string
	clipboardLog  []string
	readErr       error
	writeErr      error
	writeErrOnce  bool
	raiseErr      error
	pasteErr      error
	pasteErrOnce  bool
	typeErr       error
	typedText     string
	typedDelay    time.Duration
	raisedPID     int32
	pasteCount    int
	pasteBetween  []string // clipboard contents observed at each paste
}

func (f *fakeOps) readClipboard() (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.clipboard, nil
}

func (f *fakeOps) writeClipboard(text string) error {
	if f.writeErr != nil {
		err := f.writeErr
		if f.writeErrOnce {
			f.writeErr = nil
		}
		return err
	}
	f.clipboard = text
	f.clipboardLog = append(f.clipboardLog, text)
	return nil
}

func (f *fakeOps) raiseWindow(pid int32) error {
	if f.raiseErr != nil {
		return f.raiseErr
	}
	f.raisedPID = pid
	return nil
}

func (f *fakeOps) sendPaste() error {
	if f.pasteErr != nil {
		err := f.pasteErr
		if f.pasteErrOnce {
			f.pasteErr = nil
		}
		return err
	}
	f.pasteCount++
	f.pasteBetween = append(f.pasteBetween, f.clipboard)
	return nil
}

func (f *fakeOps) typeText(text string, delay time.Duration) error {
	if f.typeErr != nil {
		return f.typeErr
	}
	f.typedText = text
	f.typedDelay = delay
	return nil
}

type fakeTracker struct {
	valid bool
}

func (f *fakeTracker) Capture() (focus.Target, error) {
	return focus.Target{PID: 42, App: "Notes", CapturedAt: time.Now()}, nil
}

func (f *fakeTracker) StillValid(focus.Target) bool { return f.valid }

func newTestInjector(o *fakeOps, valid bool) *Injector {
	return &Injector{ops: o, tracker: &fakeTracker{valid: valid}}
}

func target() focus.Target {
	return focus.Target{PID: 42, App: "Notes", CapturedAt: time.Now()}
}

func TestClipboardStrategyPastesAndRestores(t *testing.T) {
	o := &fakeOps{clipboard: "previous contents"}
	in := newTestInjector(o, true)

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy:          StrategyClipboard,
		AddTrailingSpace:  true,
		PreserveClipboard: true,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(42), o.raisedPID)
	assert.Equal(t, 1, o.pasteCount)
	require.Len(t, o.pasteBetween, 1)
	assert.Equal(t, "hello ", o.pasteBetween[0], "paste must see the new text")
	assert.Equal(t, "previous contents", o.clipboard, "clipboard restored after paste")
}

func TestClipboardStrategyWithoutPreserve(t *testing.T) {
	o := &fakeOps{clipboard: "previous"}
	in := newTestInjector(o, true)

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy: StrategyClipboard,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", o.clipboard, "contents not restored when preservation is off")
}

func TestTrailingSpaceNotDoubled(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"hello", "hello "},
		{"hello ", "hello "},
		{"hello\n", "hello\n"},
	}
	for _, tt := range tests {
		o := &fakeOps{}
		in := newTestInjector(o, true)
		err := in.Inject(context.Background(), tt.in, target(), Options{
			Strategy:         StrategyKeystroke,
			AddTrailingSpace: true,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, o.typedText)
	}
}

func TestKeystrokeStrategy(t *testing.T) {
	o := &fakeOps{}
	in := newTestInjector(o, true)

	err := in.Inject(context.Background(), "line one\nline two", target(), Options{
		Strategy:    StrategyKeystroke,
		TypingDelay: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", o.typedText)
	assert.Equal(t, 5*time.Millisecond, o.typedDelay)
	assert.Equal(t, int32(42), o.raisedPID)
	assert.Zero(t, o.pasteCount)
}

func TestCopyOnlySkipsSyntheticInput(t *testing.T) {
	o := &fakeOps{}
	in := newTestInjector(o, false) // focus validity must not matter

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy: StrategyClipboard,
		CopyOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", o.clipboard)
	assert.Zero(t, o.pasteCount)
	assert.Zero(t, o.raisedPID)
}

func TestFocusGoneFailsWithTextOnClipboard(t *testing.T) {
	o := &fakeOps{}
	in := newTestInjector(o, false)

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy: StrategyClipboard,
	})
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ReasonFocusGone, terr.Reason)
	assert.Equal(t, "hello", o.clipboard, "text preserved for manual paste")
}

func TestClipboardUntouchedOnFocusGoneWithPreserve(t *testing.T) {
	o := &fakeOps{clipboard: "user data"}
	in := newTestInjector(o, false)

	err := in.Inject(context.Background(), "secret transcript", target(), Options{
		Strategy:          StrategyClipboard,
		PreserveClipboard: true,
	})
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ReasonFocusGone, terr.Reason)
	assert.Equal(t, "user data", o.clipboard, "clipboard must survive a failed injection intact")
	assert.Empty(t, o.clipboardLog, "no clipboard writes at all on the focus-gone path")
}

func TestTransientFailureRetriedOnce(t *testing.T) {
	o := &fakeOps{pasteErr: errors.New("tap timeout"), pasteErrOnce: true}
	in := newTestInjector(o, true)

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy: StrategyClipboard,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, o.pasteCount)
}

func TestPersistentFailureReported(t *testing.T) {
	o := &fakeOps{pasteErr: errors.New("tap disabled")}
	in := newTestInjector(o, true)

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy: StrategyClipboard,
	})
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ReasonPermissionDenied, terr.Reason)
	assert.Equal(t, "hello", o.clipboard, "text preserved after giving up")
}

func TestRaiseFailureNotRetried(t *testing.T) {
	o := &fakeOps{raiseErr: errors.New("application not running")}
	in := newTestInjector(o, true)

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy: StrategyKeystroke,
	})
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, ReasonFocusGone, terr.Reason)
}

func TestClipboardRestoredOnPasteFailure(t *testing.T) {
	o := &fakeOps{clipboard: "previous", pasteErr: errors.New("tap disabled")}
	in := newTestInjector(o, true)

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy:          StrategyClipboard,
		PreserveClipboard: true,
	})
	require.Error(t, err)
	// Preservation holds regardless of outcome: the saved contents are
	// back in place once Inject returns.
	assert.Equal(t, "previous", o.clipboard)
}

func TestFailedPasteLeavesTranscriptWithoutPreserve(t *testing.T) {
	o := &fakeOps{clipboard: "previous", pasteErr: errors.New("tap disabled")}
	in := newTestInjector(o, true)

	err := in.Inject(context.Background(), "hello", target(), Options{
		Strategy: StrategyClipboard,
	})
	require.Error(t, err)
	assert.Equal(t, "hello", o.clipboard, "transcript recoverable when nothing is being preserved")
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"clipboard", StrategyClipboard, false},
		{"Keystroke", StrategyKeystroke, false},
		{" clipboard ", StrategyClipboard, false},
		{"telepathy", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
