package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go.localvoice.app/localvoice/audio"
	"go.localvoice.app/localvoice/focus"
	"go.localvoice.app/localvoice/hotkey"
	"go.localvoice.app/localvoice/inject"
	"go.localvoice.app/localvoice/record"
	"go.localvoice.app/localvoice/transcribe"
)

const (
	// audioStartTimeout bounds the wait for the input device to open.
	audioStartTimeout = 3 * time.Second
	// injectTimeout bounds one injection attempt including its retry.
	injectTimeout = 10 * time.Second
)

// AudioSource is the microphone stream consumed during capture.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() error
	Frames() <-chan audio.Frame
	Format() audio.Format
}

// Transcriber accepts frozen recordings and delivers results on an
// ordered channel, tagged by session id.
type Transcriber interface {
	Submit(sessionID string, clip record.Clip, language string)
	Results() <-chan transcribe.Result
}

// Injector delivers finalized text into the captured focus target.
type Injector interface {
	Inject(ctx context.Context, text string, target focus.Target, opts inject.Options) error
}

// Deps are the pipeline components the controller drives. Each is
// constructed once at startup and owned by the process.
type Deps struct {
	Events   <-chan hotkey.Event
	Tracker  focus.Tracker
	Source   AudioSource
	Worker   Transcriber
	Injector Injector
}

// Options holds the per-session configuration snapshot. Replaced only
// between sessions via Reload.
type Options struct {
	Language     string
	MinRecording time.Duration
	MaxRecording time.Duration
	Inject       inject.Options

	// PostProcess rewrites the transcript before injection, for
	// vocabulary substitutions. Nil means no rewriting.
	PostProcess func(string) string
	// OnText observes each successfully delivered transcript, for the
	// history log. Nil disables observation.
	OnText func(text, app string, audioLen time.Duration)
}

// session is the live dictation act. Exclusively owned by the control
// goroutine; the capture goroutine touches only the buffer, and only
// until captureDone closes.
type session struct {
	id          string
	target      focus.Target
	buffer      *record.Buffer
	started     time.Time
	cancelled   bool
	captureDone chan struct{}
}

type outcome struct {
	sessionID string
	text      string
	audioLen  time.Duration
	err       error
}

// Controller is the dictation state machine. All transitions happen on
// the single goroutine started by Run; external threads communicate
// exclusively through channels.
type Controller struct {
	deps Deps
	opts Options

	state State
	cur   *session

	outcomes chan outcome
	autostop chan string
	cancelc  chan struct{}
	reloadc  chan func(*Options)
	pending  func(*Options)

	subs []chan Transition

	stop chan struct{}
	done chan struct{}
}

// New creates a controller in Idle. Call Run to start it.
func New(deps Deps, opts Options) *Controller {
	return &Controller{
		deps:     deps,
		opts:     opts,
		outcomes: make(chan outcome, 4),
		autostop: make(chan string, 1),
		cancelc:  make(chan struct{}, 1),
		reloadc:  make(chan func(*Options), 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Subscribe registers a transition observer. Subscribers that fall
// behind miss transitions rather than blocking the state machine.
// Must be called before Run.
func (c *Controller) Subscribe() <-chan Transition {
	ch := make(chan Transition, 16)
	c.subs = append(c.subs, ch)
	return ch
}

// Cancel abandons the live session, whatever its state. A no-op when
// idle.
func (c *Controller) Cancel() {
	select {
	case c.cancelc <- struct{}{}:
	default:
	}
}

// Reload queues a configuration update. The function runs on the
// control goroutine while no session is active; an update arriving
// mid-session is held until the machine returns to Idle, and a newer
// update replaces a held one.
func (c *Controller) Reload(apply func(*Options)) {
	select {
	case c.reloadc <- apply:
		return
	default:
	}
	// Replace the queued update with the newer one.
	select {
	case <-c.reloadc:
	default:
	}
	c.reloadc <- apply
}

// Stop shuts the controller down, cancelling any live session.
func (c *Controller) Stop() {
	close(c.stop)
	<-c.done
}

// Run drives the state machine until Stop. It is the only goroutine
// that reads or writes controller state.
func (c *Controller) Run() {
	defer close(c.done)
	defer func() {
		for _, ch := range c.subs {
			close(ch)
		}
	}()

	for {
		select {
		case ev, ok := <-c.deps.Events:
			if !ok {
				c.cancelCurrent()
				return
			}
			switch ev {
			case hotkey.EventActivate:
				c.handleActivate()
			case hotkey.EventDeactivate:
				c.handleDeactivate()
			}

		case id := <-c.autostop:
			if c.state == Capturing && c.cur != nil && c.cur.id == id {
				slog.Info("maximum recording duration reached", "session", id)
				c.handleDeactivate()
			}

		case res := <-c.deps.Worker.Results():
			c.handleResult(res)

		case out := <-c.outcomes:
			c.handleOutcome(out)

		case <-c.cancelc:
			c.cancelCurrent()

		case apply := <-c.reloadc:
			if c.state == Idle {
				apply(&c.opts)
				slog.Info("configuration applied")
			} else {
				c.pending = apply
				slog.Info("configuration update queued until idle")
			}

		case <-c.stop:
			c.cancelCurrent()
			return
		}
	}
}

// handleActivate starts a session. The focus target must be captured
// before anything that could raise another window.
func (c *Controller) handleActivate() {
	if c.state != Idle {
		slog.Warn("activation rejected", "state", c.state)
		c.publish(Transition{
			SessionID: c.currentID(),
			From:      c.state,
			To:        c.state,
			Err:       ErrSessionActive,
			At:        time.Now(),
		})
		return
	}

	target, err := c.deps.Tracker.Capture()
	if err != nil {
		c.fail("", Idle, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), audioStartTimeout)
	err = c.deps.Source.Start(ctx)
	cancel()
	if err != nil {
		c.fail("", Idle, err)
		return
	}

	s := &session{
		id:      uuid.NewString(),
		target:  target,
		started: time.Now(),
		buffer: record.NewBuffer(c.deps.Source.Format().SampleRate,
			c.opts.MinRecording, c.opts.MaxRecording),
		captureDone: make(chan struct{}),
	}
	c.cur = s
	go c.captureLoop(s, c.deps.Source.Frames())

	c.transition(s.id, Capturing, nil)
	slog.Info("session started", "session", s.id, "app", target.App)
}

// captureLoop drains the frame channel into the session buffer. It is
// the buffer's only writer and exits when the source closes the channel
// at Stop. On reaching the maximum duration it nudges the control
// goroutine once and keeps draining so the device thread never stalls.
func (c *Controller) captureLoop(s *session, frames <-chan audio.Frame) {
	defer close(s.captureDone)
	notified := false
	for f := range frames {
		if !s.buffer.Append(f) && !notified {
			notified = true
			select {
			case c.autostop <- s.id:
			default:
			}
		}
	}
}

// handleDeactivate stops capture and dispatches transcription.
func (c *Controller) handleDeactivate() {
	if c.state != Capturing || c.cur == nil {
		return
	}
	s := c.cur

	if err := c.deps.Source.Stop(); err != nil {
		<-s.captureDone
		s.buffer.Discard()
		c.fail(s.id, Capturing, err)
		c.cur = nil
		return
	}
	<-s.captureDone

	clip, err := s.buffer.Finalize()
	if err != nil {
		if errors.Is(err, record.ErrTooShort) {
			err = &transcribe.Error{Reason: transcribe.ReasonTooShort, Err: err}
		}
		c.fail(s.id, Capturing, err)
		c.cur = nil
		return
	}

	c.transition(s.id, Transcribing, nil)
	c.deps.Worker.Submit(s.id, clip, c.opts.Language)
	slog.Info("recording finalized", "session", s.id, "audio", clip.Duration())
}

// handleResult routes one transcription result. Results for abandoned or
// superseded sessions are dropped.
func (c *Controller) handleResult(res transcribe.Result) {
	if c.state != Transcribing || c.cur == nil || c.cur.id != res.SessionID || c.cur.cancelled {
		slog.Debug("stale transcription result dropped", "session", res.SessionID)
		return
	}
	s := c.cur

	if res.Err != nil {
		c.fail(s.id, Transcribing, res.Err)
		c.cur = nil
		return
	}

	text := res.Text
	if c.opts.PostProcess != nil {
		text = c.opts.PostProcess(text)
	}
	if text == "" {
		c.fail(s.id, Transcribing, &transcribe.Error{Reason: transcribe.ReasonNoSpeech})
		c.cur = nil
		return
	}

	c.transition(s.id, Injecting, nil)

	audioLen := time.Since(s.started)
	go func(id, text string, target focus.Target, opts inject.Options) {
		ctx, cancel := context.WithTimeout(context.Background(), injectTimeout)
		defer cancel()
		err := c.deps.Injector.Inject(ctx, text, target, opts)
		c.outcomes <- outcome{sessionID: id, text: text, audioLen: audioLen, err: err}
	}(s.id, text, s.target, c.opts.Inject)
}

// handleOutcome closes the session after injection resolves.
func (c *Controller) handleOutcome(out outcome) {
	if c.state != Injecting || c.cur == nil || c.cur.id != out.sessionID || c.cur.cancelled {
		slog.Debug("stale injection outcome dropped", "session", out.sessionID)
		return
	}
	s := c.cur
	c.cur = nil

	if out.err != nil {
		c.fail(s.id, Injecting, out.err)
		return
	}

	c.transition(s.id, Idle, nil)
	slog.Info("text delivered", "session", s.id, "chars", len(out.text), "app", s.target.App)
	if c.opts.OnText != nil {
		c.opts.OnText(out.text, s.target.App, out.audioLen)
	}
}

// cancelCurrent abandons the live session. In Capturing the device is
// stopped and the buffer discarded; later stages only mark the session
// so their eventual result is dropped.
func (c *Controller) cancelCurrent() {
	if c.state == Idle || c.cur == nil {
		return
	}
	s := c.cur
	s.cancelled = true

	if c.state == Capturing {
		if err := c.deps.Source.Stop(); err != nil {
			slog.Warn("audio stop during cancel failed", "error", err)
		}
		<-s.captureDone
		s.buffer.Discard()
	}

	from := c.state
	c.cur = nil
	c.state = Idle
	c.publish(Transition{SessionID: s.id, From: from, To: Idle, Err: ErrCancelled, At: time.Now()})
	slog.Info("session cancelled", "session", s.id, "state", from)
	c.applyPending()
}

// fail publishes the failure transition and returns the machine to Idle.
// Every failed session is observable exactly once.
func (c *Controller) fail(id string, from State, err error) {
	c.state = Failed
	c.publish(Transition{SessionID: id, From: from, To: Failed, Err: err, At: time.Now()})

	// A recording with no recognizable speech is routine, not alarming.
	var terr *transcribe.Error
	if errors.As(err, &terr) && terr.Reason == transcribe.ReasonNoSpeech {
		slog.Warn("session ended without speech", "session", id)
	} else {
		slog.Error("session failed", "session", id, "state", from, "error", err)
	}

	c.state = Idle
	c.publish(Transition{SessionID: id, From: Failed, To: Idle, At: time.Now()})
	c.applyPending()
}

func (c *Controller) transition(id string, to State, err error) {
	from := c.state
	c.state = to
	c.publish(Transition{SessionID: id, From: from, To: to, Err: err, At: time.Now()})
	if to == Idle {
		c.applyPending()
	}
}

func (c *Controller) applyPending() {
	if c.pending == nil {
		return
	}
	c.pending(&c.opts)
	c.pending = nil
	slog.Info("queued configuration applied")
}

func (c *Controller) publish(t Transition) {
	for _, ch := range c.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

func (c *Controller) currentID() string {
	if c.cur == nil {
		return ""
	}
	return c.cur.id
}
