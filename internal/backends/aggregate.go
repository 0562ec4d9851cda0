package backends

import (
	"sort"

	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// Contribution is one backend's normalized vote for a merged result
type Contribution struct {
	Backend BackendID
	// Score is the backend-local score after per-backend normalization to [0,1]
	Score float64
	// Rank is the result's 0-based position in the backend's own ordering
	Rank int
}

// ScoreFuser turns the contributions for one deduplicated entry into its
// final cross-backend score in [0,1]. Raw scores are never comparable across
// backends, so fusers only ever see normalized inputs.
type ScoreFuser interface {
	Name() string
	Fuse(contribs []Contribution, listCount int) float64
}

// MaxFuser keeps the highest normalized backend score. The default: a strong
// match in any one backend should not be diluted by a weak match elsewhere.
type MaxFuser struct{}

// Name identifies the strategy
func (MaxFuser) Name() string { return "max" }

// Fuse returns the maximum contribution score
func (MaxFuser) Fuse(contribs []Contribution, _ int) float64 {
	var max float64
	for _, c := range contribs {
		if c.Score > max {
			max = c.Score
		}
	}
	return max
}

// DefaultRRFK is the standard reciprocal-rank-fusion constant
const DefaultRRFK = 60

// RRFFuser scores by reciprocal rank: sum(1/(k+rank+1)) over contributing
// lists, scaled by the best possible sum so the result stays in [0,1].
// Rank-based fusion ignores score magnitudes entirely, which makes it robust
// when a backend's scores are poorly calibrated.
type RRFFuser struct {
	K int
}

// Name identifies the strategy
func (RRFFuser) Name() string { return "rrf" }

// Fuse computes the scaled reciprocal-rank sum
func (f RRFFuser) Fuse(contribs []Contribution, listCount int) float64 {
	k := f.K
	if k < 1 {
		k = DefaultRRFK
	}
	if listCount < 1 {
		listCount = 1
	}

	var sum float64
	for _, c := range contribs {
		sum += 1.0 / float64(k+c.Rank+1)
	}
	best := float64(listCount) / float64(k+1)
	return sum / best
}

// NewScoreFuser returns the fuser for a policy fusion name
func NewScoreFuser(name string) ScoreFuser {
	if name == "rrf" {
		return RRFFuser{K: DefaultRRFK}
	}
	return MaxFuser{}
}

// Aggregator deduplicates and ranks per-backend result lists into one
// coherent ordering
type Aggregator struct {
	fuser  ScoreFuser
	logger *logging.Logger
}

// NewAggregator creates an aggregator using the named fusion strategy
func NewAggregator(fusion string, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		fuser:  NewScoreFuser(fusion),
		logger: logger,
	}
}

type mergedEntry struct {
	result    SearchResult
	contribs  []Contribution
	seedPos   int
	firstRank int
}

// Aggregate merges the per-backend pages into the final ordered result list
// and the total estimate. order is the dedup-seed ordering from selection:
// the first backend's view of a duplicated entry wins ties for title and
// metadata. Output is deterministic for a fixed set of inputs regardless of
// the order backends actually returned in.
func (a *Aggregator) Aggregate(order []BackendID, pages map[BackendID]*Page, qp *plan.QueryPlan) ([]SearchResult, int) {
	entries := make(map[string]*mergedEntry)
	var keys []string

	listCount := 0
	for _, id := range order {
		page := pages[id]
		if page == nil {
			continue
		}
		if len(page.Results) > 0 {
			listCount++
		}

		norms := normalizeScores(page.Results)
		for rank, r := range page.Results {
			contrib := Contribution{Backend: id, Score: norms[rank], Rank: rank}

			key := r.DedupKey()
			entry, ok := entries[key]
			if !ok {
				r.Sources = []BackendID{id}
				entries[key] = &mergedEntry{
					result:    r,
					contribs:  []Contribution{contrib},
					seedPos:   len(keys),
					firstRank: rank,
				}
				keys = append(keys, key)
				continue
			}

			entry.contribs = append(entry.contribs, contrib)
			entry.result.Sources = append(entry.result.Sources, id)
			// Seed backend's metadata wins; later backends only fill gaps.
			for k, v := range r.Metadata {
				if entry.result.Metadata == nil {
					entry.result.Metadata = map[string]interface{}{}
				}
				if _, exists := entry.result.Metadata[k]; !exists {
					entry.result.Metadata[k] = v
				}
			}
		}
	}

	merged := make([]*mergedEntry, 0, len(keys))
	for _, key := range keys {
		e := entries[key]
		e.result.Score = clamp01(a.fuser.Fuse(e.contribs, listCount))
		merged = append(merged, e)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].result.Score != merged[j].result.Score {
			return merged[i].result.Score > merged[j].result.Score
		}
		if merged[i].firstRank != merged[j].firstRank {
			return merged[i].firstRank < merged[j].firstRank
		}
		return merged[i].result.ID < merged[j].result.ID
	})

	// Truncation happens only after full dedup and sort; truncating earlier
	// would under-count unique entities.
	results := make([]SearchResult, 0, len(merged))
	for _, e := range merged {
		results = append(results, e.result)
	}
	if qp.Limit > 0 && len(results) > qp.Limit {
		results = results[:qp.Limit]
	}

	total := totalEstimate(pages, len(merged))

	a.logger.Debug("Aggregated results", map[string]interface{}{
		"fusion":   a.fuser.Name(),
		"unique":   len(merged),
		"returned": len(results),
		"total":    total,
	})

	return results, total
}

// normalizeScores min-max normalizes one backend's scores into [0,1].
// A list with a single score, or all-equal scores, maps to 1.0.
func normalizeScores(results []SearchResult) []float64 {
	norms := make([]float64, len(results))
	if len(results) == 0 {
		return norms
	}

	min, max := results[0].Score, results[0].Score
	for _, r := range results[1:] {
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}

	for i, r := range results {
		if max == min {
			norms[i] = 1.0
			continue
		}
		norms[i] = (r.Score - min) / (max - min)
	}
	return norms
}

// totalEstimate sums backend-reported totals where available, counting the
// returned page for backends that do not report one. With no reported totals
// at all, the deduplicated count is the estimate.
func totalEstimate(pages map[BackendID]*Page, dedupCount int) int {
	anyReported := false
	sum := 0
	for _, page := range pages {
		if page == nil {
			continue
		}
		if page.HasTotal {
			anyReported = true
			sum += page.Total
		} else {
			sum += len(page.Results)
		}
	}
	if !anyReported {
		return dedupCount
	}
	return sum
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
