package record

import (
	"math"
	"time"
)

// speechRMSThreshold is the windowed RMS level below which audio is
// treated as silence. Typical room noise at normal input gain sits well
// under this; even quiet speech peaks above it.
const speechRMSThreshold = 0.01

// activityWindow is the analysis window for the silence check.
const activityWindow = 100 * time.Millisecond

// HasSpeech reports whether any analysis window of the clip rises above
// the silence threshold. A clip that never does will produce no text, so
// callers can skip inference entirely.
func (c Clip) HasSpeech() bool {
	if len(c.samples) == 0 {
		return false
	}
	window := int(float64(c.sampleRate) * activityWindow.Seconds())
	if window <= 0 {
		window = len(c.samples)
	}

	for start := 0; start < len(c.samples); start += window {
		end := min(start+window, len(c.samples))
		if rms(c.samples[start:end]) > speechRMSThreshold {
			return true
		}
	}
	return false
}

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
