// Package backends defines the uniform contract for heterogeneous search
// backends and the orchestration that fans a single query plan out across
// them, tolerating partial failure.
package backends

import (
	"context"
	"strings"

	"lakefind/internal/plan"
)

// BackendID uniquely identifies a backend family
type BackendID string

const (
	// BackendFullText is the full-text index backend
	BackendFullText BackendID = "fulltext"
	// BackendCatalog is the metadata/graph catalog backend
	BackendCatalog BackendID = "catalog"
	// BackendObjectStore is the raw object-listing backend
	BackendObjectStore BackendID = "objectstore"
)

// Capability identifiers backends advertise
const (
	// CapFreeText means the backend scores free-text queries
	CapFreeText = "free-text"
	// CapMetadataPredicates means arbitrary key/value predicates are evaluated
	CapMetadataPredicates = "metadata-predicates"
	// CapScopeBucket means bucket-scoped queries are supported
	CapScopeBucket = "scope-bucket"
	// CapScopePackage means package-scoped queries are supported
	CapScopePackage = "scope-package"
	// CapAggregation means the backend supports aggregation/faceting queries
	CapAggregation = "aggregation"
)

// Backend is the adapter contract every backend family implements.
//
// Search must respect ctx's deadline: return a timeout error rather than
// block past it. "No matches" is an empty page, not an error; only
// infrastructure failure (connectivity, auth, malformed backend output)
// is an error.
type Backend interface {
	// ID returns the unique identifier for this backend
	ID() BackendID

	// IsAvailable checks if this backend is currently configured and ready
	IsAvailable() bool

	// Capabilities returns the capability identifiers this backend supports
	Capabilities() []string

	// Priority returns the priority of this backend (lower = higher priority)
	Priority() int

	// Search translates the plan into the backend's native query and returns
	// a bounded page of results
	Search(ctx context.Context, qp *plan.QueryPlan) (*Page, error)

	// Ping is a cheap liveness check used by health probing
	Ping(ctx context.Context) error
}

// HasCapability reports whether b advertises the given capability
func HasCapability(b Backend, cap string) bool {
	for _, c := range b.Capabilities() {
		if c == cap {
			return true
		}
	}
	return false
}

// ResultType classifies what kind of entity a result refers to
type ResultType string

const (
	// TypePackage is a versioned package of objects
	TypePackage ResultType = "package"
	// TypeObject is a single stored object
	TypeObject ResultType = "object"
	// TypeBucket is a storage bucket
	TypeBucket ResultType = "bucket"
)

// SearchResult is one hit from one backend. Score is backend-local until the
// aggregator normalizes it into [0,1].
type SearchResult struct {
	ID       string                 `json:"id"`
	Type     ResultType             `json:"type"`
	Title    string                 `json:"title"`
	Score    float64                `json:"score"`
	Backend  BackendID              `json:"backend"`
	Sources  []BackendID            `json:"sources,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Locator  string                 `json:"locator"`
}

// DedupKey returns the key used to merge results referring to the same
// logical entity across backends: type plus normalized locator.
func (r SearchResult) DedupKey() string {
	return string(r.Type) + "\x00" + NormalizeLocator(r.Locator)
}

// NormalizeLocator canonicalizes a locator for dedup comparison.
// Key case is preserved (object keys are case-sensitive); only
// whitespace and a trailing slash are dropped.
func NormalizeLocator(loc string) string {
	return strings.TrimSuffix(strings.TrimSpace(loc), "/")
}

// Page is one backend's bounded answer to a plan
type Page struct {
	// Results in the backend's own ranking order
	Results []SearchResult

	// Total is the backend's reported total match count, beyond the
	// returned page. Valid only when HasTotal is true.
	Total    int
	HasTotal bool
}

// Outcome records how one backend fared for one request. SearchResponse
// carries one Outcome per backend that was selected, attempted or not.
type Outcome struct {
	BackendID BackendID `json:"backendId"`
	Count     int       `json:"count"`
	LatencyMs int64     `json:"latencyMs"`
	Error     string    `json:"error,omitempty"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Skipped   bool      `json:"skipped,omitempty"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// SearchResponse is the final merged answer for one request
type SearchResponse struct {
	Results       []SearchResult        `json:"results"`
	TotalEstimate int                   `json:"totalEstimate"`
	PerBackend    map[BackendID]Outcome `json:"perBackend"`
	Explanation   *Explanation          `json:"explanation,omitempty"`
	DurationMs    int64                 `json:"durationMs"`
}

// Explanation reports which backends a plan would use and why,
// without executing any of them
type Explanation struct {
	Plan         *plan.QueryPlan       `json:"plan"`
	Selected     []BackendID           `json:"backendsSelected"`
	EstimatedMs  map[BackendID]float64 `json:"estimatedCostMs"`
	Alternatives []Alternative         `json:"alternatives,omitempty"`
	Fallback     bool                  `json:"fallback,omitempty"`
}

// Alternative is a backend that was eligible in principle but not selected
type Alternative struct {
	BackendID BackendID `json:"backendId"`
	Reason    string    `json:"reason"`
}
