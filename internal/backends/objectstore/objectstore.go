// Package objectstore implements the raw object-listing backend over a
// filesystem-mounted lake root.
//
// Each top-level directory under the root is a bucket; files below it are
// objects. This backend sees exactly what is on disk right now, including
// objects no index has picked up yet, which makes it the ground-truth
// complement to the catalog and the full-text index. It knows nothing about
// packages or metadata, and its relevance signal is recency only.
package objectstore

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"

	"lakefind/internal/backends"
	"lakefind/internal/errors"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// maxScan bounds how many directory entries one listing visits. Past the cap
// the reported match count is a lower bound, not a total.
const maxScan = 10000

// Backend lists objects straight off the filesystem
type Backend struct {
	root    string
	enabled bool
	logger  *logging.Logger
}

// New creates an object-listing adapter rooted at rootDir
func New(rootDir string, enabled bool, logger *logging.Logger) *Backend {
	b := &Backend{root: rootDir, logger: logger.Named("objectstore")}
	if !enabled {
		return b
	}

	info, err := os.Stat(rootDir)
	if err != nil || !info.IsDir() {
		b.logger.Warn("Object store root unavailable", map[string]interface{}{
			"root": rootDir,
		})
		return b
	}

	b.enabled = true
	return b
}

// ID returns the backend identifier
func (b *Backend) ID() backends.BackendID { return backends.BackendObjectStore }

// IsAvailable reports whether the root directory exists
func (b *Backend) IsAvailable() bool { return b.enabled }

// Capabilities lists what a raw listing can evaluate. No package scoping and
// no metadata predicates; the filesystem carries neither.
func (b *Backend) Capabilities() []string {
	return []string{
		backends.CapFreeText,
		backends.CapScopeBucket,
	}
}

// Priority returns the selection tie-break priority
func (b *Backend) Priority() int { return 3 }

// Ping stats the root directory
func (b *Backend) Ping(ctx context.Context) error {
	if !b.enabled {
		return errors.New(errors.BackendUnavailable, "object store root is not configured", nil)
	}
	_, err := os.Stat(b.root)
	return err
}

// matcher matches one query term against object paths. Terms containing glob
// metacharacters compile to patterns; plain terms match as case-insensitive
// substrings.
type matcher struct {
	pattern glob.Glob
	substr  string
}

func newMatcher(term string) (matcher, error) {
	if strings.ContainsAny(term, "*?[{") {
		g, err := glob.Compile(strings.ToLower(term), '/')
		if err != nil {
			return matcher{}, err
		}
		return matcher{pattern: g}, nil
	}
	return matcher{substr: strings.ToLower(term)}, nil
}

func (m matcher) match(path string) bool {
	lower := strings.ToLower(path)
	if m.pattern != nil {
		// Try the full path and the bare filename, so "*.csv" works without
		// the caller spelling out intermediate directories.
		return m.pattern.Match(lower) || m.pattern.Match(filepath.Base(lower))
	}
	return strings.Contains(lower, m.substr)
}

type candidate struct {
	locator string
	bucket  string
	key     string
	size    int64
	modTime time.Time
}

// Search walks the lake root and returns matching objects, newest first
func (b *Backend) Search(ctx context.Context, qp *plan.QueryPlan) (*backends.Page, error) {
	if !b.enabled {
		return nil, errors.New(errors.BackendUnavailable, "object store root is not configured", nil)
	}

	matchers := make([]matcher, 0, len(qp.Terms))
	for _, term := range qp.Terms {
		m, err := newMatcher(term)
		if err != nil {
			// An unparseable glob is the caller's input, not an outage;
			// fall back to substring matching on the raw term.
			m = matcher{substr: strings.ToLower(term)}
		}
		matchers = append(matchers, m)
	}

	walkRoot := b.root
	if qp.Scope == plan.ScopeBucket {
		walkRoot = filepath.Join(b.root, qp.Target)
		if info, err := os.Stat(walkRoot); err != nil || !info.IsDir() {
			// Unknown bucket: no matches, not an infrastructure failure.
			return &backends.Page{HasTotal: true}, nil
		}
	}

	var matches []candidate
	scanned := 0
	truncated := false

	err := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != walkRoot {
				return filepath.SkipDir
			}
			return nil
		}

		scanned++
		if scanned > maxScan {
			truncated = true
			return filepath.SkipAll
		}

		rel, relErr := filepath.Rel(b.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		c, ok := b.evaluate(rel, d, matchers, qp)
		if ok {
			matches = append(matches, c)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New(errors.BackendUnavailable, "object store walk failed", err)
	}

	// Newest first; recency is the only ranking signal a listing has.
	sort.SliceStable(matches, func(i, j int) bool {
		if !matches[i].modTime.Equal(matches[j].modTime) {
			return matches[i].modTime.After(matches[j].modTime)
		}
		return matches[i].locator < matches[j].locator
	})

	page := &backends.Page{
		Total:    len(matches),
		HasTotal: !truncated,
	}

	limit := pageSize(qp)
	if len(matches) > limit {
		matches = matches[:limit]
	}

	now := time.Now()
	page.Results = make([]backends.SearchResult, 0, len(matches))
	for _, c := range matches {
		page.Results = append(page.Results, backends.SearchResult{
			ID:      c.locator,
			Type:    backends.TypeObject,
			Title:   filepath.Base(c.key),
			Score:   recencyScore(now, c.modTime),
			Backend: backends.BackendObjectStore,
			Metadata: map[string]interface{}{
				"bucket":   c.bucket,
				"size":     c.size,
				"modified": c.modTime.UTC().Format(time.RFC3339),
			},
			Locator: c.locator,
		})
	}
	return page, nil
}

// evaluate applies term matchers and filters to one file
func (b *Backend) evaluate(rel string, d fs.DirEntry, matchers []matcher, qp *plan.QueryPlan) (candidate, bool) {
	bucket, key, ok := splitLocator(rel)
	if !ok {
		return candidate{}, false
	}

	for _, m := range matchers {
		if !m.match(rel) {
			return candidate{}, false
		}
	}

	f := qp.Filters
	if f.Extension != "" {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(key)), ".")
		if ext != f.Extension {
			return candidate{}, false
		}
	}

	needInfo := f.SizeMin > 0 || f.SizeMax > 0 ||
		!f.CreatedAfter.IsZero() || !f.CreatedBefore.IsZero()

	info, err := d.Info()
	if err != nil {
		if needInfo {
			return candidate{}, false
		}
		return candidate{locator: rel, bucket: bucket, key: key}, true
	}

	if f.SizeMin > 0 && info.Size() < f.SizeMin {
		return candidate{}, false
	}
	if f.SizeMax > 0 && info.Size() > f.SizeMax {
		return candidate{}, false
	}
	if !f.CreatedAfter.IsZero() && info.ModTime().Before(f.CreatedAfter) {
		return candidate{}, false
	}
	if !f.CreatedBefore.IsZero() && info.ModTime().After(f.CreatedBefore) {
		return candidate{}, false
	}

	return candidate{
		locator: rel,
		bucket:  bucket,
		key:     key,
		size:    info.Size(),
		modTime: info.ModTime(),
	}, true
}

// splitLocator splits "bucket/key/parts" into bucket and key. Files sitting
// directly in the root belong to no bucket and are not objects.
func splitLocator(rel string) (bucket, key string, ok bool) {
	i := strings.IndexByte(rel, '/')
	if i <= 0 || i == len(rel)-1 {
		return "", "", false
	}
	return rel[:i], rel[i+1:], true
}

func pageSize(qp *plan.QueryPlan) int {
	if qp.Limit > 0 {
		return qp.Limit
	}
	return 10
}

// recencyScore decays from 1.0 for an object modified now toward 0 with age.
// Half-life of 30 days, floored so ancient objects still rank.
func recencyScore(now, modTime time.Time) float64 {
	if modTime.IsZero() {
		return 0.1
	}
	ageDays := now.Sub(modTime).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	score := 1.0 / (1.0 + ageDays/30)
	if score < 0.05 {
		return 0.05
	}
	return score
}
