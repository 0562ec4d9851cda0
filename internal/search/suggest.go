package search

import (
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"lakefind/internal/plan"
)

// recentTermsSize bounds how many successful query terms the suggester
// remembers across requests
const recentTermsSize = 256

// Suggestion is one completion candidate for a query prefix
type Suggestion struct {
	Text   string `json:"text"`
	Source string `json:"source"` // "recent", "extension", or "phrase"
}

// Suggester completes query prefixes from two pools: terms from recent
// successful searches, and the fixed vocabulary of known extensions and
// filter phrases. Recent terms rank first; they reflect what this lake's
// users actually look for.
type Suggester struct {
	recent *lru.Cache[string, struct{}]
	vocab  *plan.Vocabulary
}

// NewSuggester creates a suggester over the given vocabulary
func NewSuggester(vocab *plan.Vocabulary) (*Suggester, error) {
	cache, err := lru.New[string, struct{}](recentTermsSize)
	if err != nil {
		return nil, err
	}
	return &Suggester{recent: cache, vocab: vocab}, nil
}

// RecordTerms remembers the terms of a query that produced results
func (s *Suggester) RecordTerms(terms []string) {
	for _, term := range terms {
		if len(term) < 2 {
			continue
		}
		s.recent.Add(strings.ToLower(term), struct{}{})
	}
}

// Suggest returns up to limit completions for prefix
func (s *Suggester) Suggest(prefix string, limit int) []Suggestion {
	if limit <= 0 {
		limit = 10
	}
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	var out []Suggestion
	seen := map[string]bool{}

	add := func(text, source string) {
		if len(out) >= limit || seen[text] {
			return
		}
		seen[text] = true
		out = append(out, Suggestion{Text: text, Source: source})
	}

	var recents []string
	for _, term := range s.recent.Keys() {
		if prefix == "" || strings.HasPrefix(term, prefix) {
			recents = append(recents, term)
		}
	}
	sort.Strings(recents)
	for _, term := range recents {
		add(term, "recent")
	}

	if prefix != "" {
		for _, ext := range s.vocab.Extensions {
			if strings.HasPrefix(ext, prefix) {
				add(ext, "extension")
			}
		}
	}
	for _, phrase := range s.vocab.Phrases {
		if prefix != "" && strings.HasPrefix(strings.ToLower(phrase), prefix) {
			add(strings.TrimRight(phrase, " "), "phrase")
		}
	}

	return out
}
