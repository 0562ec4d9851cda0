// Package plan turns raw query text into a structured QueryPlan.
//
// The parser is a deterministic keyword/pattern table, not an NLP engine:
// unrecognized input degrades to a plain term search rather than failing.
package plan

import (
	"strings"
	"time"
)

// Scope restricts where a query searches
type Scope string

const (
	// ScopeGlobal searches everything
	ScopeGlobal Scope = "global"
	// ScopeBucket restricts the query to a single bucket
	ScopeBucket Scope = "bucket"
	// ScopePackage restricts the query to a single package
	ScopePackage Scope = "package"
)

// ParseScope converts a string to a Scope, defaulting to global.
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeBucket, ScopePackage:
		return Scope(s)
	default:
		return ScopeGlobal
	}
}

// Intent classifies what kind of answer the caller is after.
// It drives default backend ordering and aggregation strategy.
type Intent string

const (
	// IntentFileSearch looks for individual files/objects by content or name
	IntentFileSearch Intent = "file_search"
	// IntentPackageDiscovery looks for packages by name or metadata
	IntentPackageDiscovery Intent = "package_discovery"
	// IntentAnalytical involves comparisons or aggregation (sizes, dates, counts)
	IntentAnalytical Intent = "analytical_search"
	// IntentUnspecified is the degraded default
	IntentUnspecified Intent = "unspecified"
)

// MetadataPredicate is an arbitrary key/value constraint evaluated by
// backends that index metadata
type MetadataPredicate struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Filters holds the structured constraints extracted from a query.
// Zero values mean "not set".
type Filters struct {
	Extension     string              `json:"extension,omitempty"`
	SizeMin       int64               `json:"sizeMin,omitempty"`
	SizeMax       int64               `json:"sizeMax,omitempty"`
	CreatedAfter  time.Time           `json:"createdAfter,omitempty"`
	CreatedBefore time.Time           `json:"createdBefore,omitempty"`
	Metadata      []MetadataPredicate `json:"metadata,omitempty"`
}

// Empty reports whether no filter is set
func (f Filters) Empty() bool {
	return f.Extension == "" && f.SizeMin == 0 && f.SizeMax == 0 &&
		f.CreatedAfter.IsZero() && f.CreatedBefore.IsZero() && len(f.Metadata) == 0
}

// QueryPlan is the immutable, structured form of one search request.
// One instance is built per request and discarded afterwards.
type QueryPlan struct {
	RawText           string   `json:"rawText"`
	Intent            Intent   `json:"intent"`
	Terms             []string `json:"terms"`
	Filters           Filters  `json:"filters"`
	Scope             Scope    `json:"scope"`
	Target            string   `json:"target,omitempty"`
	RequestedBackends []string `json:"requestedBackends,omitempty"`
	Limit             int      `json:"limit"`
}

// MatchAll reports whether the plan has no free-text terms and should be
// treated as "match everything that passes the filters" downstream,
// not as a literal empty-string search.
func (p *QueryPlan) MatchAll() bool {
	return len(p.Terms) == 0
}

// FreeText returns the cleaned search terms joined for backends that take a
// single query string
func (p *QueryPlan) FreeText() string {
	return strings.Join(p.Terms, " ")
}
