// Package vocabulary post-processes transcripts with user-defined
// corrections: a hint list of words the engine tends to miss, and exact
// substitutions applied after transcription.
package vocabulary

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/exp/maps"
)

// MaxWords bounds the hint list so the prompt passed to the engine stays
// short enough to steer rather than drown it.
const MaxWords = 50

// Vocabulary holds custom words and post-transcription substitutions.
// It is immutable after construction; a configuration reload builds a
// fresh one.
type Vocabulary struct {
	words []string
	subs  []substitution
}

type substitution struct {
	pattern     *regexp.Regexp
	replacement string
}

// New builds a vocabulary. Words beyond MaxWords are rejected rather
// than silently dropped. Substitution keys match case-insensitively on
// word boundaries; replacements are inserted verbatim.
func New(words []string, substitutions map[string]string) (*Vocabulary, error) {
	if len(words) > MaxWords {
		return nil, fmt.Errorf("vocabulary: %d words exceeds limit of %d", len(words), MaxWords)
	}

	v := &Vocabulary{}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w != "" {
			v.words = append(v.words, w)
		}
	}

	// Map iteration order varies run to run; overlapping patterns must
	// rewrite in a stable order.
	keys := maps.Keys(substitutions)
	slices.Sort(keys)
	for _, from := range keys {
		to := substitutions[from]
		from = strings.TrimSpace(from)
		if from == "" {
			continue
		}
		pat, err := compileWordPattern(from)
		if err != nil {
			return nil, fmt.Errorf("vocabulary: substitution %q: %w", from, err)
		}
		v.subs = append(v.subs, substitution{pattern: pat, replacement: to})
	}
	return v, nil
}

// Prompt renders the hint list as the initial prompt handed to the
// engine, biasing recognition toward the configured words. Empty when no
// words are configured.
func (v *Vocabulary) Prompt() string {
	return strings.Join(v.words, ", ")
}

// Apply rewrites text with the configured substitutions.
func (v *Vocabulary) Apply(text string) string {
	for _, s := range v.subs {
		text = s.pattern.ReplaceAllString(text, s.replacement)
	}
	return text
}

// compileWordPattern builds a case-insensitive pattern anchored on word
// boundaries. \b misbehaves when the phrase starts or ends with
// punctuation, so boundaries are only applied next to word characters.
func compileWordPattern(phrase string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?i)")
	runes := []rune(phrase)
	if isWordRune(runes[0]) {
		sb.WriteString(`\b`)
	}
	sb.WriteString(regexp.QuoteMeta(phrase))
	if isWordRune(runes[len(runes)-1]) {
		sb.WriteString(`\b`)
	}
	return regexp.Compile(sb.String())
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
