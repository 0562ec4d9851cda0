package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"lakefind/internal/backends"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

func writeFile(t *testing.T, root, rel string, size int, modTime time.Time) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

func testStore(t *testing.T) *Backend {
	t.Helper()
	root := t.TempDir()

	now := time.Now()
	writeFile(t, root, "raw-data/sales/q1.csv", 2048, now.Add(-48*time.Hour))
	writeFile(t, root, "raw-data/sales/q2.parquet", 4096, now.Add(-1*time.Hour))
	writeFile(t, root, "analytics/reports/churn.md", 512, now.Add(-400*24*time.Hour))
	writeFile(t, root, "stray.txt", 10, now) // no bucket, not an object

	b := New(root, true, logging.NewDiscardLogger())
	if !b.IsAvailable() {
		t.Fatal("store should be available")
	}
	return b
}

func TestListMatchAll(t *testing.T) {
	b := testStore(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Scope: plan.ScopeGlobal,
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(page.Results) != 3 {
		t.Fatalf("got %d objects, want 3 (root-level files are not objects)", len(page.Results))
	}
	if !page.HasTotal || page.Total != 3 {
		t.Errorf("total = %d (hasTotal %v)", page.Total, page.HasTotal)
	}

	// Newest first: recency is the listing's only ranking signal.
	if page.Results[0].Locator != "raw-data/sales/q2.parquet" {
		t.Errorf("first result = %s, want the most recent object", page.Results[0].Locator)
	}
	for i := 1; i < len(page.Results); i++ {
		if page.Results[i].Score > page.Results[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestListSubstringTerm(t *testing.T) {
	b := testStore(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Terms: []string{"sales"},
		Scope: plan.ScopeGlobal,
		Limit: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 2 {
		t.Errorf("got %d results, want 2", len(page.Results))
	}
}

func TestListGlobTerm(t *testing.T) {
	b := testStore(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Terms: []string{"*.parquet"},
		Scope: plan.ScopeGlobal,
		Limit: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 1 || page.Results[0].Locator != "raw-data/sales/q2.parquet" {
		t.Errorf("glob results = %+v", page.Results)
	}
}

func TestListBucketScope(t *testing.T) {
	b := testStore(t)

	t.Run("known bucket", func(t *testing.T) {
		page, err := b.Search(context.Background(), &plan.QueryPlan{
			Scope:  plan.ScopeBucket,
			Target: "analytics",
			Limit:  10,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Results) != 1 || page.Results[0].Locator != "analytics/reports/churn.md" {
			t.Errorf("results = %+v", page.Results)
		}
	})

	t.Run("unknown bucket is empty, not an error", func(t *testing.T) {
		page, err := b.Search(context.Background(), &plan.QueryPlan{
			Scope:  plan.ScopeBucket,
			Target: "no-such-bucket",
			Limit:  10,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Results) != 0 {
			t.Errorf("results = %+v", page.Results)
		}
	})
}

func TestListFilters(t *testing.T) {
	b := testStore(t)

	t.Run("extension", func(t *testing.T) {
		page, err := b.Search(context.Background(), &plan.QueryPlan{
			Filters: plan.Filters{Extension: "csv"},
			Scope:   plan.ScopeGlobal,
			Limit:   10,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Results) != 1 || page.Results[0].Locator != "raw-data/sales/q1.csv" {
			t.Errorf("results = %+v", page.Results)
		}
	})

	t.Run("size min", func(t *testing.T) {
		page, err := b.Search(context.Background(), &plan.QueryPlan{
			Filters: plan.Filters{SizeMin: 3000},
			Scope:   plan.ScopeGlobal,
			Limit:   10,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Results) != 1 || page.Results[0].Locator != "raw-data/sales/q2.parquet" {
			t.Errorf("results = %+v", page.Results)
		}
	})

	t.Run("modified after", func(t *testing.T) {
		page, err := b.Search(context.Background(), &plan.QueryPlan{
			Filters: plan.Filters{CreatedAfter: time.Now().Add(-7 * 24 * time.Hour)},
			Scope:   plan.ScopeGlobal,
			Limit:   10,
		})
		if err != nil {
			t.Fatal(err)
		}
		if len(page.Results) != 2 {
			t.Errorf("got %d results, want the two recent objects", len(page.Results))
		}
	})
}

func TestListLimit(t *testing.T) {
	b := testStore(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Scope: plan.ScopeGlobal,
		Limit: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 1 {
		t.Errorf("page size = %d, want 1", len(page.Results))
	}
	if page.Total != 3 {
		t.Errorf("total = %d, want full match count", page.Total)
	}
}

func TestListResultShape(t *testing.T) {
	b := testStore(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Terms: []string{"churn"},
		Scope: plan.ScopeGlobal,
		Limit: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Results) != 1 {
		t.Fatalf("results = %+v", page.Results)
	}

	r := page.Results[0]
	if r.Type != backends.TypeObject {
		t.Errorf("type = %s", r.Type)
	}
	if r.Title != "churn.md" {
		t.Errorf("title = %s", r.Title)
	}
	if r.Metadata["bucket"] != "analytics" {
		t.Errorf("metadata = %v", r.Metadata)
	}
	if r.Score <= 0 || r.Score > 1 {
		t.Errorf("score = %f", r.Score)
	}
}

func TestUnavailableRoot(t *testing.T) {
	b := New("/nonexistent/lake/root", true, logging.NewDiscardLogger())
	if b.IsAvailable() {
		t.Error("missing root reports available")
	}
	if _, err := b.Search(context.Background(), &plan.QueryPlan{Limit: 1}); err == nil {
		t.Error("search with missing root should fail")
	}
}

func TestRecencyScore(t *testing.T) {
	now := time.Now()
	fresh := recencyScore(now, now)
	month := recencyScore(now, now.Add(-30*24*time.Hour))
	ancient := recencyScore(now, now.Add(-10*365*24*time.Hour))

	if fresh != 1.0 {
		t.Errorf("fresh = %f, want 1.0", fresh)
	}
	if month >= fresh || month < 0.4 {
		t.Errorf("30d = %f, want roughly half of fresh", month)
	}
	if ancient != 0.05 {
		t.Errorf("ancient = %f, want the floor", ancient)
	}
}
