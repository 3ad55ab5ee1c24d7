package transcribe

import (
	"errors"
	"math"
	"testing"
	"time"

	"go.localvoice.app/localvoice/audio"
	"go.localvoice.app/localvoice/record"
)

type fakeEngine struct {
	text string
	err  error

	gotSamples  int
	gotRate     int
	gotLanguage string
}

func (f *fakeEngine) Infer(samples []float32, sampleRate int, language string) (string, error) {
	f.gotSamples = len(samples)
	f.gotRate = sampleRate
	f.gotLanguage = language
	return f.text, f.err
}

func makeClip(t *testing.T, seconds float64) record.Clip {
	t.Helper()
	buf := record.NewBuffer(16000, 100*time.Millisecond, 10*time.Second)
	n := int(seconds * 16000)
	samples := make([]float32, n)
	for i := range samples {
		// Audible tone so the silence gate does not reject the clip.
		samples[i] = 0.1 * float32(math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	buf.Append(audio.Frame{Samples: samples})
	clip, err := buf.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return clip
}

func makeSilentClip(t *testing.T, seconds float64) record.Clip {
	t.Helper()
	buf := record.NewBuffer(16000, 100*time.Millisecond, 10*time.Second)
	buf.Append(audio.Frame{Samples: make([]float32, int(seconds*16000))})
	clip, err := buf.Finalize()
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return clip
}

func waitResult(t *testing.T, w *Worker) Result {
	t.Helper()
	select {
	case res := <-w.Results():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return Result{}
	}
}

func TestWorkerSuccess(t *testing.T) {
	eng := &fakeEngine{text: "  hello world  "}
	w := NewWorker(eng)

	w.Submit("s1", makeClip(t, 1), "en")
	res := waitResult(t, w)

	if res.SessionID != "s1" {
		t.Errorf("session = %q, want s1", res.SessionID)
	}
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Text != "hello world" {
		t.Errorf("text = %q, want trimmed %q", res.Text, "hello world")
	}
	if eng.gotRate != 16000 || eng.gotSamples != 16000 {
		t.Errorf("engine saw %d samples at %d Hz", eng.gotSamples, eng.gotRate)
	}
	if eng.gotLanguage != "en" {
		t.Errorf("language = %q, want en", eng.gotLanguage)
	}
}

func TestWorkerTypedErrorPassthrough(t *testing.T) {
	want := &Error{Reason: ReasonEngineUnavailable}
	w := NewWorker(&fakeEngine{err: want})

	w.Submit("s1", makeClip(t, 1), "")
	res := waitResult(t, w)

	var terr *Error
	if !errors.As(res.Err, &terr) {
		t.Fatalf("error %v is not a typed failure", res.Err)
	}
	if terr.Reason != ReasonEngineUnavailable {
		t.Errorf("reason = %v, want %v", terr.Reason, ReasonEngineUnavailable)
	}
}

func TestWorkerWrapsUntypedError(t *testing.T) {
	cause := errors.New("process exited 1")
	w := NewWorker(&fakeEngine{err: cause})

	w.Submit("s1", makeClip(t, 1), "")
	res := waitResult(t, w)

	var terr *Error
	if !errors.As(res.Err, &terr) {
		t.Fatalf("error %v is not a typed failure", res.Err)
	}
	if terr.Reason != ReasonEngineFailed {
		t.Errorf("reason = %v, want %v", terr.Reason, ReasonEngineFailed)
	}
	if !errors.Is(res.Err, cause) {
		t.Error("cause not preserved through wrapping")
	}
}

func TestWorkerWhitespaceOnlyText(t *testing.T) {
	w := NewWorker(&fakeEngine{text: "   \n "})

	w.Submit("s1", makeClip(t, 1), "")
	res := waitResult(t, w)

	var terr *Error
	if !errors.As(res.Err, &terr) || terr.Reason != ReasonNoSpeech {
		t.Fatalf("error = %v, want no-speech failure", res.Err)
	}
}

func TestWorkerSilentClipSkipsEngine(t *testing.T) {
	eng := &fakeEngine{text: "should not be produced"}
	w := NewWorker(eng)

	w.Submit("s1", makeSilentClip(t, 1), "")
	res := waitResult(t, w)

	var terr *Error
	if !errors.As(res.Err, &terr) || terr.Reason != ReasonNoSpeech {
		t.Fatalf("error = %v, want no-speech failure", res.Err)
	}
	if eng.gotSamples != 0 {
		t.Error("engine should not run on silence")
	}
}

func TestWorkerCloseReleasesPendingDeliveries(t *testing.T) {
	w := NewWorker(&fakeEngine{})

	// Six jobs against the four-slot result buffer with no consumer: two
	// deliveries park on the send.
	for i := 0; i < 6; i++ {
		w.Submit("s1", record.Clip{}, "")
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(w.results) < 4 {
		if time.Now().After(deadline) {
			t.Fatal("results never buffered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w.Close()
	for w.Discarded() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("parked deliveries not released, discarded = %d", w.Discarded())
		}
		time.Sleep(5 * time.Millisecond)
	}
	w.Close()
}

func TestWorkerEmptyClip(t *testing.T) {
	w := NewWorker(&fakeEngine{text: "ignored"})

	w.Submit("s1", record.Clip{}, "")
	res := waitResult(t, w)

	var terr *Error
	if !errors.As(res.Err, &terr) || terr.Reason != ReasonTooShort {
		t.Fatalf("error = %v, want too-short failure", res.Err)
	}
}
