// Package fulltext implements the full-text search backend on a bleve index.
//
// Objects are indexed with their title, extracted text body, and the filter
// columns (extension, size, created). Free text goes through bleve's query
// string syntax; structured filters become conjunction clauses, so the index
// never returns hits the plan's filters exclude.
package fulltext

import (
	"context"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"lakefind/internal/backends"
	"lakefind/internal/errors"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// Document is the indexed form of one stored object
type Document struct {
	Locator string    `json:"locator"`
	Bucket  string    `json:"bucket"`
	Package string    `json:"package"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Ext     string    `json:"ext"`
	Size    float64   `json:"size"`
	Created time.Time `json:"created"`
}

// Type implements bleve's classifier so documents pick up the object mapping
func (Document) Type() string { return "object" }

// Backend is the bleve-backed full-text search adapter
type Backend struct {
	index   bleve.Index
	path    string
	enabled bool
	logger  *logging.Logger
}

// New opens (or creates) the bleve index at path. A disabled or unopenable
// index yields an adapter that reports IsAvailable() == false rather than an
// error; the orchestrator routes around it.
func New(path string, enabled bool, logger *logging.Logger) *Backend {
	b := &Backend{path: path, logger: logger.Named("fulltext")}
	if !enabled {
		return b
	}

	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, buildIndexMapping())
	}
	if err != nil {
		b.logger.Warn("Full-text index unavailable", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
		return b
	}

	b.index = index
	b.enabled = true
	return b
}

// NewMem creates an in-memory adapter, used by tests and ad-hoc indexing
func NewMem(logger *logging.Logger) (*Backend, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Backend{index: index, enabled: true, logger: logger.Named("fulltext")}, nil
}

// buildIndexMapping defines the object schema: analyzed text for title/body,
// keyword fields for the identifiers, numeric/datetime fields for filters
func buildIndexMapping() mapping.IndexMapping {
	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	text := bleve.NewTextFieldMapping()

	num := bleve.NewNumericFieldMapping()
	date := bleve.NewDateTimeFieldMapping()

	obj := bleve.NewDocumentMapping()
	obj.AddFieldMappingsAt("locator", kw)
	obj.AddFieldMappingsAt("bucket", kw)
	obj.AddFieldMappingsAt("package", kw)
	obj.AddFieldMappingsAt("ext", kw)
	obj.AddFieldMappingsAt("title", text)
	obj.AddFieldMappingsAt("body", text)
	obj.AddFieldMappingsAt("size", num)
	obj.AddFieldMappingsAt("created", date)

	im := bleve.NewIndexMapping()
	im.AddDocumentMapping("object", obj)
	im.DefaultType = "object"
	return im
}

// ID returns the backend identifier
func (b *Backend) ID() backends.BackendID { return backends.BackendFullText }

// IsAvailable reports whether the index is open
func (b *Backend) IsAvailable() bool { return b.enabled && b.index != nil }

// Capabilities lists what this backend can evaluate. Arbitrary metadata
// predicates are deliberately absent; the catalog owns those.
func (b *Backend) Capabilities() []string {
	return []string{
		backends.CapFreeText,
		backends.CapScopeBucket,
		backends.CapScopePackage,
	}
}

// Priority returns the selection tie-break priority
func (b *Backend) Priority() int { return 1 }

// Ping checks index liveness with a document count
func (b *Backend) Ping(ctx context.Context) error {
	if !b.IsAvailable() {
		return errors.New(errors.BackendUnavailable, "full-text index is not open", nil)
	}
	_, err := b.index.DocCount()
	return err
}

// Close releases the index
func (b *Backend) Close() error {
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	b.enabled = false
	return err
}

// Search translates the plan into a bleve query and executes it
func (b *Backend) Search(ctx context.Context, qp *plan.QueryPlan) (*backends.Page, error) {
	if !b.IsAvailable() {
		return nil, errors.New(errors.BackendUnavailable, "full-text index is not open", nil)
	}

	req := bleve.NewSearchRequestOptions(buildQuery(qp), pageSize(qp), 0, false)
	req.Fields = []string{"locator", "bucket", "package", "title", "ext", "size", "created"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.New(errors.BackendUnavailable, "full-text query failed", err)
	}

	page := &backends.Page{
		Results:  make([]backends.SearchResult, 0, len(res.Hits)),
		Total:    int(res.Total),
		HasTotal: true,
	}
	for _, hit := range res.Hits {
		page.Results = append(page.Results, hitToResult(hit.ID, hit.Score, hit.Fields))
	}
	return page, nil
}

// buildQuery assembles the conjunction of free text and structured filters
func buildQuery(qp *plan.QueryPlan) query.Query {
	var clauses []query.Query

	if qp.MatchAll() {
		clauses = append(clauses, bleve.NewMatchAllQuery())
	} else {
		clauses = append(clauses, bleve.NewQueryStringQuery(qp.FreeText()))
	}

	switch qp.Scope {
	case plan.ScopeBucket:
		clauses = append(clauses, termQuery("bucket", qp.Target))
	case plan.ScopePackage:
		clauses = append(clauses, termQuery("package", qp.Target))
	}

	f := qp.Filters
	if f.Extension != "" {
		clauses = append(clauses, termQuery("ext", f.Extension))
	}
	if f.SizeMin > 0 || f.SizeMax > 0 {
		var min, max *float64
		if f.SizeMin > 0 {
			v := float64(f.SizeMin)
			min = &v
		}
		if f.SizeMax > 0 {
			v := float64(f.SizeMax)
			max = &v
		}
		rq := bleve.NewNumericRangeQuery(min, max)
		rq.SetField("size")
		clauses = append(clauses, rq)
	}
	if !f.CreatedAfter.IsZero() || !f.CreatedBefore.IsZero() {
		end := f.CreatedBefore
		if end.IsZero() {
			// bleve treats the zero time as unset only on the start side
			end = time.Now().AddDate(100, 0, 0)
		}
		dq := bleve.NewDateRangeQuery(f.CreatedAfter, end)
		dq.SetField("created")
		clauses = append(clauses, dq)
	}

	if len(clauses) == 1 {
		return clauses[0]
	}
	return bleve.NewConjunctionQuery(clauses...)
}

func termQuery(field, value string) query.Query {
	tq := bleve.NewTermQuery(value)
	tq.SetField(field)
	return tq
}

// pageSize bounds how much one backend contributes before aggregation
func pageSize(qp *plan.QueryPlan) int {
	if qp.Limit > 0 {
		return qp.Limit
	}
	return 10
}

func hitToResult(id string, score float64, fields map[string]interface{}) backends.SearchResult {
	title := stringField(fields, "title")
	if title == "" {
		title = id
	}

	meta := map[string]interface{}{}
	if ext := stringField(fields, "ext"); ext != "" {
		meta["extension"] = ext
	}
	if bucket := stringField(fields, "bucket"); bucket != "" {
		meta["bucket"] = bucket
	}
	if pkg := stringField(fields, "package"); pkg != "" {
		meta["package"] = pkg
	}
	if size, ok := fields["size"].(float64); ok && size > 0 {
		meta["size"] = int64(size)
	}
	if created := stringField(fields, "created"); created != "" {
		meta["created"] = created
	}

	locator := stringField(fields, "locator")
	if locator == "" {
		locator = id
	}

	return backends.SearchResult{
		ID:       id,
		Type:     backends.TypeObject,
		Title:    title,
		Score:    score,
		Backend:  backends.BackendFullText,
		Metadata: meta,
		Locator:  locator,
	}
}

func stringField(fields map[string]interface{}, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

// IndexObject adds or replaces one object in the index
func (b *Backend) IndexObject(ctx context.Context, doc Document) error {
	if !b.IsAvailable() {
		return errors.New(errors.BackendUnavailable, "full-text index is not open", nil)
	}
	if doc.Locator == "" {
		return fmt.Errorf("document locator must not be empty")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return b.index.Index(doc.Locator, doc)
}

// IndexBatch indexes documents in one bleve batch
func (b *Backend) IndexBatch(ctx context.Context, docs []Document) error {
	if !b.IsAvailable() {
		return errors.New(errors.BackendUnavailable, "full-text index is not open", nil)
	}

	batch := b.index.NewBatch()
	for _, doc := range docs {
		if doc.Locator == "" {
			return fmt.Errorf("document locator must not be empty")
		}
		if err := batch.Index(doc.Locator, doc); err != nil {
			return err
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := b.index.Batch(batch); err != nil {
		return err
	}

	b.logger.Debug("Indexed batch", map[string]interface{}{
		"documents": len(docs),
	})
	return nil
}

// DocCount returns the number of indexed objects
func (b *Backend) DocCount() (uint64, error) {
	if !b.IsAvailable() {
		return 0, errors.New(errors.BackendUnavailable, "full-text index is not open", nil)
	}
	return b.index.DocCount()
}
