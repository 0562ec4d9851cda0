package fulltext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lakefind/internal/backends"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

func testBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := NewMem(logging.NewDiscardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	docs := []Document{
		{
			Locator: "raw-data/sales/2025/q1.csv",
			Bucket:  "raw-data",
			Package: "sales-2025",
			Title:   "q1.csv",
			Body:    "quarterly sales revenue by region",
			Ext:     "csv",
			Size:    5 << 20,
			Created: time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			Locator: "raw-data/sales/2025/q2.parquet",
			Bucket:  "raw-data",
			Package: "sales-2025",
			Title:   "q2.parquet",
			Body:    "quarterly sales revenue columnar export",
			Ext:     "parquet",
			Size:    300 << 20,
			Created: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			Locator: "analytics/reports/churn.md",
			Bucket:  "analytics",
			Package: "",
			Title:   "churn.md",
			Body:    "customer churn analysis notes",
			Ext:     "md",
			Size:    12 << 10,
			Created: time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC),
		},
	}
	require.NoError(t, b.IndexBatch(context.Background(), docs))
	return b
}

func TestSearchFreeText(t *testing.T) {
	b := testBackend(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Terms: []string{"sales", "revenue"},
		Scope: plan.ScopeGlobal,
		Limit: 10,
	})
	require.NoError(t, err)

	require.Len(t, page.Results, 2)
	assert.True(t, page.HasTotal)
	assert.Equal(t, 2, page.Total)
	for _, r := range page.Results {
		assert.Equal(t, backends.TypeObject, r.Type)
		assert.NotEmpty(t, r.Locator)
		assert.Greater(t, r.Score, 0.0, "result %s has non-positive score", r.ID)
	}
}

func TestSearchExtensionFilter(t *testing.T) {
	b := testBackend(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Terms:   []string{"sales"},
		Filters: plan.Filters{Extension: "parquet"},
		Scope:   plan.ScopeGlobal,
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, page.Results, 1, "extension filter should keep the parquet file only")
	assert.Equal(t, "parquet", page.Results[0].Metadata["extension"])
}

func TestSearchSizeRange(t *testing.T) {
	b := testBackend(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Filters: plan.Filters{SizeMin: 100 << 20},
		Scope:   plan.ScopeGlobal,
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "raw-data/sales/2025/q2.parquet", page.Results[0].Locator)
}

func TestSearchDateRange(t *testing.T) {
	b := testBackend(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Filters: plan.Filters{CreatedAfter: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		Scope:   plan.ScopeGlobal,
		Limit:   10,
	})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "raw-data/sales/2025/q2.parquet", page.Results[0].Locator)
}

func TestSearchBucketScope(t *testing.T) {
	b := testBackend(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Scope:  plan.ScopeBucket,
		Target: "analytics",
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "analytics/reports/churn.md", page.Results[0].Locator)
}

func TestSearchMatchAll(t *testing.T) {
	b := testBackend(t)

	// Empty terms are "everything passing the filters", not a literal "".
	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Scope: plan.ScopeGlobal,
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, page.Results, 3)
}

func TestSearchLimit(t *testing.T) {
	b := testBackend(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Scope: plan.ScopeGlobal,
		Limit: 1,
	})
	require.NoError(t, err)
	assert.Len(t, page.Results, 1)
	assert.Equal(t, 3, page.Total, "total should count matches past the page")
}

func TestSearchNoMatchesIsEmptyPage(t *testing.T) {
	b := testBackend(t)

	page, err := b.Search(context.Background(), &plan.QueryPlan{
		Terms: []string{"zzzzzz"},
		Scope: plan.ScopeGlobal,
		Limit: 10,
	})
	require.NoError(t, err, "no matches must not be an error")
	assert.Empty(t, page.Results)
}

func TestUnavailableBackend(t *testing.T) {
	b := &Backend{logger: logging.NewDiscardLogger()}

	assert.False(t, b.IsAvailable())
	_, err := b.Search(context.Background(), &plan.QueryPlan{Limit: 1})
	assert.Error(t, err, "search on unopened index should fail")
	assert.Error(t, b.Ping(context.Background()), "ping on unopened index should fail")
}

func TestDocCount(t *testing.T) {
	b := testBackend(t)
	n, err := b.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}
