package transcribe

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.localvoice.app/localvoice/record"
)

// Result is the outcome of one transcription job, tagged with the session
// that requested it so late results from abandoned sessions can be
// dropped by the consumer.
type Result struct {
	SessionID string
	Text      string
	Err       error
	Elapsed   time.Duration
}

// Worker runs inference on a background goroutine and delivers results
// over an ordered channel, keeping the control thread responsive. The
// session controller never runs two sessions at once, so at most one job
// is normally in flight; after an explicit cancellation a superseded job
// may still be draining, which is why results carry the session id.
type Worker struct {
	engine    Engine
	results   chan Result
	quit      chan struct{}
	closeOnce sync.Once
	discarded atomic.Uint64
}

// NewWorker creates a worker around the given engine.
func NewWorker(engine Engine) *Worker {
	return &Worker{
		engine:  engine,
		results: make(chan Result, 4),
		quit:    make(chan struct{}),
	}
}

// Results returns the ordered result channel.
func (w *Worker) Results() <-chan Result { return w.results }

// Close releases job goroutines still waiting to deliver after the
// consumer has gone away; their results are discarded. Jobs already
// running finish their inference and then exit.
func (w *Worker) Close() {
	w.closeOnce.Do(func() { close(w.quit) })
}

// Discarded reports how many results were dropped because the worker was
// closed before they could be delivered.
func (w *Worker) Discarded() uint64 { return w.discarded.Load() }

// Submit dispatches one clip for transcription. It returns immediately;
// the result arrives on Results.
func (w *Worker) Submit(sessionID string, clip record.Clip, language string) {
	go func() {
		start := time.Now()
		text, err := w.run(clip, language)
		res := Result{
			SessionID: sessionID,
			Text:      text,
			Err:       err,
			Elapsed:   time.Since(start),
		}
		if err == nil {
			slog.Info("transcription finished", "session", sessionID,
				"audio", clip.Duration(), "elapsed", res.Elapsed)
		}
		select {
		case w.results <- res:
		case <-w.quit:
			w.discarded.Add(1)
			slog.Debug("transcription result discarded after close", "session", sessionID)
		}
	}()
}

func (w *Worker) run(clip record.Clip, language string) (string, error) {
	if clip.Empty() {
		return "", &Error{Reason: ReasonTooShort, Err: fmt.Errorf("empty clip")}
	}
	if !clip.HasSpeech() {
		return "", &Error{Reason: ReasonNoSpeech, Err: fmt.Errorf("recording contains only silence")}
	}

	text, err := w.engine.Infer(clip.Samples(), clip.SampleRate(), language)
	if err != nil {
		if _, ok := err.(*Error); ok {
			return "", err
		}
		return "", &Error{Reason: ReasonEngineFailed, Err: err}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &Error{Reason: ReasonNoSpeech}
	}
	return text, nil
}
