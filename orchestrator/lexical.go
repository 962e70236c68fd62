package orchestrator

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hupe1980/taskmesh/core"
)

// LexicalStrategy routes by word overlap. Task and descriptor text are case
// folded, stripped of diacritics, split on non-alphanumerics, filtered
// against a stopword list and lightly stemmed. Each task token found in a
// worker's description scores 1, in its name NameWeight. The highest score
// wins; ties go to the earliest candidate.
type LexicalStrategy struct {
	NameWeight int
}

// NewLexicalStrategy returns a lexical strategy with a name weight of 2.
func NewLexicalStrategy() *LexicalStrategy { return &LexicalStrategy{NameWeight: 2} }

// Name implements Strategy.
func (s *LexicalStrategy) Name() string { return "lexical" }

// Select implements Strategy.
func (s *LexicalStrategy) Select(_ context.Context, task string, candidates []core.WorkerDescriptor) (int, error) {
	query := tokenSet(task)
	weight := s.NameWeight
	if weight < 1 {
		weight = 1
	}

	best, bestScore := 0, -1
	for i, c := range candidates {
		nameTokens := tokenSet(c.Name)
		descTokens := tokenSet(c.Description)
		score := 0
		for tok := range query {
			if nameTokens[tok] {
				score += weight
			}
			if descTokens[tok] {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, nil
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "can": true, "do": true, "for": true, "from": true,
	"get": true, "give": true, "how": true, "i": true, "in": true, "is": true,
	"it": true, "me": true, "my": true, "of": true, "on": true, "or": true,
	"please": true, "tell": true, "that": true, "the": true, "this": true,
	"to": true, "useful": true, "what": true, "which": true, "who": true,
	"with": true, "you": true, "agent": true, "worker": true,
}

// tokenize normalizes text into routing tokens.
func tokenize(text string) []string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold()),
		text,
	)
	if err != nil {
		folded = strings.ToLower(text)
	}

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		f = stem(f)
		if f == "" || stopwords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(text) {
		set[tok] = true
	}
	return set
}

// stem strips a few common English suffixes. Words shorter than five runes
// are left alone.
func stem(w string) string {
	if len([]rune(w)) < 5 {
		return w
	}
	switch {
	case strings.HasSuffix(w, "ies"):
		return strings.TrimSuffix(w, "ies") + "y"
	case strings.HasSuffix(w, "ing"):
		return strings.TrimSuffix(w, "ing")
	case strings.HasSuffix(w, "ed"):
		return strings.TrimSuffix(w, "ed")
	case strings.HasSuffix(w, "es") && !strings.HasSuffix(w, "ses"):
		return strings.TrimSuffix(w, "es")
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return strings.TrimSuffix(w, "s")
	}
	return w
}
