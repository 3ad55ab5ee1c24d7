// Package inject delivers finalized text into the window that held focus
// when the session began, either through the clipboard with a synthetic
// paste or by typing synthetic keystrokes.
package inject

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.localvoice.app/localvoice/focus"
)

// Strategy selects how text reaches the target window.
type Strategy string

const (
	// StrategyClipboard places text on the clipboard and sends a paste
	// chord. Fast and reliable for large text.
	StrategyClipboard Strategy = "clipboard"
	// StrategyKeystroke types the text character by character. Slower but
	// works in fields that block paste.
	StrategyKeystroke Strategy = "keystroke"
)

// ParseStrategy resolves a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyClipboard:
		return StrategyClipboard, nil
	case StrategyKeystroke:
		return StrategyKeystroke, nil
	default:
		return "", fmt.Errorf("unknown injection method: %q", s)
	}
}

// FailureReason classifies injection failures.
type FailureReason int

const (
	// ReasonFocusGone means the captured target window no longer exists.
	ReasonFocusGone FailureReason = iota
	// ReasonPermissionDenied means the OS refused synthetic input.
	ReasonPermissionDenied
	// ReasonUnavailable means the platform mechanism failed outright.
	ReasonUnavailable
)

func (r FailureReason) String() string {
	switch r {
	case ReasonFocusGone:
		return "target window gone"
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonUnavailable:
		return "injection unavailable"
	default:
		return fmt.Sprintf("FailureReason(%d)", int(r))
	}
}

// Error is a typed injection failure. The transcribed text is preserved
// on the clipboard as a fallback so the user can paste it manually.
type Error struct {
	Reason FailureReason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inject: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("inject: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Options controls one injection.
type Options struct {
	Strategy          Strategy
	TypingDelay       time.Duration // per-character delay for StrategyKeystroke
	AddTrailingSpace  bool
	PreserveClipboard bool
	// CopyOnly places the text on the clipboard and skips the synthetic
	// input entirely.
	CopyOnly bool
}

// clipboardSettle is how long the paste chord is given to read the
// clipboard before the previous contents are restored.
const clipboardSettle = 150 * time.Millisecond

// ops is the platform surface. Synthetic input and pasteboard access are
// OS specific; everything above this interface is portable and tested
// against a fake.
type ops interface {
	readClipboard() (string, error)
	writeClipboard(text string) error
	// raiseWindow brings the process that owns the target window to the
	// foreground so synthetic input lands in it.
	raiseWindow(pid int32) error
	// sendPaste emits the platform paste chord.
	sendPaste() error
	// typeText emits text as synthetic keystrokes with the given
	// per-character delay. Newlines and tabs become Return and Tab.
	typeText(text string, delay time.Duration) error
}

// Injector places text into the previously focused window.
type Injector struct {
	ops     ops
	tracker focus.Tracker
}

// New creates an injector for the current platform. Returns an error on
// platforms without synthetic input support.
func New(tracker focus.Tracker) (*Injector, error) {
	o, err := newOps()
	if err != nil {
		return nil, err
	}
	return &Injector{ops: o, tracker: tracker}, nil
}

// Inject delivers text to the target window. The text is normalized with
// a trailing space when AddTrailingSpace is set, unless it already ends
// with whitespace. A transient failure is retried once. When clipboard
// preservation is off, a failed delivery leaves the text on the clipboard
// so it is not lost; with preservation on, the clipboard is never left
// holding anything but its prior contents, whatever the outcome.
func (in *Injector) Inject(ctx context.Context, text string, target focus.Target, opts Options) error {
	if opts.AddTrailingSpace && !endsWithBreak(text) {
		text += " "
	}

	if opts.CopyOnly {
		if err := in.ops.writeClipboard(text); err != nil {
			return &Error{Reason: ReasonUnavailable, Err: fmt.Errorf("write clipboard: %w", err)}
		}
		slog.Info("text copied to clipboard", "chars", len(text))
		return nil
	}

	if !in.tracker.StillValid(target) {
		in.fallback(text, opts)
		return &Error{Reason: ReasonFocusGone, Err: fmt.Errorf("app %q (pid %d) no longer running", target.App, target.PID)}
	}

	err := in.deliver(ctx, text, target, opts)
	if err == nil {
		return nil
	}
	if isTransient(err) {
		slog.Warn("injection failed, retrying once", "error", err)
		if retryErr := in.deliver(ctx, text, target, opts); retryErr == nil {
			return nil
		}
	}

	in.fallback(text, opts)
	return err
}

// fallback leaves undelivered text recoverable on the clipboard, but only
// when the user has not asked for their clipboard to be preserved.
func (in *Injector) fallback(text string, opts Options) {
	if opts.PreserveClipboard {
		return
	}
	if err := in.ops.writeClipboard(text); err != nil {
		slog.Warn("fallback clipboard write failed", "error", err)
	}
}

func (in *Injector) deliver(ctx context.Context, text string, target focus.Target, opts Options) error {
	switch opts.Strategy {
	case StrategyKeystroke:
		return in.typeInto(ctx, text, target, opts)
	default:
		return in.pasteInto(ctx, text, target, opts)
	}
}

// pasteInto implements the clipboard strategy: save, write, refocus,
// paste, then restore the saved contents after a short settle.
func (in *Injector) pasteInto(ctx context.Context, text string, target focus.Target, opts Options) error {
	var saved string
	var hadSaved bool
	if opts.PreserveClipboard {
		prev, err := in.ops.readClipboard()
		if err != nil {
			slog.Debug("could not read clipboard for restore", "error", err)
		} else {
			saved, hadSaved = prev, true
		}
	}

	if err := in.ops.writeClipboard(text); err != nil {
		return &Error{Reason: ReasonUnavailable, Err: fmt.Errorf("write clipboard: %w", err)}
	}

	restore := func() {
		if !hadSaved {
			return
		}
		if err := in.ops.writeClipboard(saved); err != nil {
			slog.Warn("clipboard restore failed", "error", err)
		}
	}

	if err := in.ops.raiseWindow(target.PID); err != nil {
		restore()
		return &Error{Reason: ReasonFocusGone, Err: fmt.Errorf("raise window: %w", err)}
	}
	if err := in.ops.sendPaste(); err != nil {
		restore()
		return &Error{Reason: ReasonPermissionDenied, Err: fmt.Errorf("send paste: %w", err)}
	}

	// The paste chord needs the text on the clipboard when the target
	// processes it. Restoring too early injects the old contents.
	if hadSaved {
		select {
		case <-time.After(clipboardSettle):
		case <-ctx.Done():
		}
		restore()
	}
	return nil
}

func (in *Injector) typeInto(ctx context.Context, text string, target focus.Target, opts Options) error {
	if err := in.ops.raiseWindow(target.PID); err != nil {
		return &Error{Reason: ReasonFocusGone, Err: fmt.Errorf("raise window: %w", err)}
	}
	if err := ctx.Err(); err != nil {
		return &Error{Reason: ReasonUnavailable, Err: err}
	}
	if err := in.ops.typeText(text, opts.TypingDelay); err != nil {
		return &Error{Reason: ReasonPermissionDenied, Err: fmt.Errorf("type text: %w", err)}
	}
	return nil
}

// isTransient reports whether a failure is worth one retry. Focus loss is
// permanent for the session; everything else may be a momentary glitch in
// the platform input pipeline.
func isTransient(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Reason != ReasonFocusGone
}

func endsWithBreak(text string) bool {
	return strings.HasSuffix(text, " ") || strings.HasSuffix(text, "\n")
}
