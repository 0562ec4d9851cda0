package search

import (
	"testing"

	"lakefind/internal/plan"
)

func newTestSuggester(t *testing.T) *Suggester {
	t.Helper()
	s, err := NewSuggester(plan.DefaultVocabulary())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSuggestRecentTermsFirst(t *testing.T) {
	s := newTestSuggester(t)
	s.RecordTerms([]string{"parking", "sales"})

	got := s.Suggest("par", 10)
	if len(got) == 0 {
		t.Fatal("no suggestions")
	}
	if got[0].Text != "parking" || got[0].Source != "recent" {
		t.Errorf("first suggestion = %+v, want recent 'parking'", got[0])
	}

	// Vocabulary extension completes the same prefix after recents.
	foundExt := false
	for _, sg := range got {
		if sg.Text == "parquet" && sg.Source == "extension" {
			foundExt = true
		}
	}
	if !foundExt {
		t.Errorf("suggestions = %+v, want 'parquet' from the vocabulary", got)
	}
}

func TestSuggestPhrases(t *testing.T) {
	s := newTestSuggester(t)

	got := s.Suggest("larger", 5)
	if len(got) != 1 || got[0].Text != "larger than" || got[0].Source != "phrase" {
		t.Errorf("suggestions = %+v", got)
	}
}

func TestSuggestLimit(t *testing.T) {
	s := newTestSuggester(t)
	s.RecordTerms([]string{"alpha", "alpine", "altitude", "albatross"})

	got := s.Suggest("al", 2)
	if len(got) != 2 {
		t.Errorf("got %d suggestions, want 2", len(got))
	}
}

func TestSuggestIgnoresShortTerms(t *testing.T) {
	s := newTestSuggester(t)
	s.RecordTerms([]string{"x", "ok"})

	got := s.Suggest("x", 5)
	for _, sg := range got {
		if sg.Text == "x" {
			t.Error("single-character term should not be remembered")
		}
	}
}

func TestSuggestEmptyPrefixListsRecents(t *testing.T) {
	s := newTestSuggester(t)
	s.RecordTerms([]string{"churn", "revenue"})

	got := s.Suggest("", 10)
	if len(got) != 2 {
		t.Fatalf("suggestions = %+v, want only the recents", got)
	}
	for _, sg := range got {
		if sg.Source != "recent" {
			t.Errorf("empty prefix pulled %s suggestions", sg.Source)
		}
	}
}

func TestSuggestDeduplicates(t *testing.T) {
	s := newTestSuggester(t)
	s.RecordTerms([]string{"csv"})

	got := s.Suggest("csv", 10)
	count := 0
	for _, sg := range got {
		if sg.Text == "csv" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("'csv' appeared %d times", count)
	}
}
