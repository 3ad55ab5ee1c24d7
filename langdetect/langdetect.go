// Package langdetect tags transcribed text with its language so history
// entries can be filtered later. Detection is advisory and never blocks
// the dictation pipeline.
package langdetect

import (
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"

	// Model registration for the languages listed below; this lingua-go
	// fork only embeds models whose subpackages are imported.
	_ "github.com/pemistahl/lingua-go/language-models/de"
	_ "github.com/pemistahl/lingua-go/language-models/en"
	_ "github.com/pemistahl/lingua-go/language-models/es"
	_ "github.com/pemistahl/lingua-go/language-models/fr"
	_ "github.com/pemistahl/lingua-go/language-models/it"
	_ "github.com/pemistahl/lingua-go/language-models/ja"
	_ "github.com/pemistahl/lingua-go/language-models/ko"
	_ "github.com/pemistahl/lingua-go/language-models/pt"
	_ "github.com/pemistahl/lingua-go/language-models/ru"
	_ "github.com/pemistahl/lingua-go/language-models/zh"
)

// Detector identifies the language of short transcripts.
type Detector struct {
	once sync.Once
	det  lingua.LanguageDetector
}

// languages kept deliberately small: the whisper models in common use
// cover these well, and a narrow candidate set improves accuracy on
// short dictation snippets.
var languages = []lingua.Language{
	lingua.English,
	lingua.Chinese,
	lingua.Japanese,
	lingua.Korean,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Portuguese,
	lingua.Russian,
	lingua.Italian,
}

// New creates a detector. The underlying models load lazily on first
// Detect so startup stays fast.
func New() *Detector {
	return &Detector{}
}

// Detect returns the ISO 639-1 code for text, or "" when no language can
// be determined with confidence.
func (d *Detector) Detect(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	d.once.Do(func() {
		d.det = lingua.NewLanguageDetectorBuilder().
			FromLanguages(languages...).
			WithPreloadedLanguageModels().
			Build()
	})

	lang, ok := d.det.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	return strings.ToLower(lang.IsoCode639_1().String())
}
