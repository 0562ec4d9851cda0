// Package catalog implements the metadata catalog backend on SQLite.
//
// The catalog is the system of record for buckets, packages, and object
// metadata. It answers name and metadata queries with SQL predicates rather
// than text relevance, so it is the only backend that evaluates arbitrary
// key/value constraints, and the preferred one for package discovery and
// analytical queries.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lakefind/internal/backends"
	"lakefind/internal/errors"
	"lakefind/internal/logging"
	"lakefind/internal/plan"
)

// Backend is the SQLite-backed catalog adapter
type Backend struct {
	conn    *sql.DB
	dbPath  string
	enabled bool
	logger  *logging.Logger
}

// New opens or creates the catalog database at dbPath. Failure to open
// produces an unavailable adapter, not an error; the orchestrator routes
// around it.
func New(dbPath string, enabled bool, logger *logging.Logger) *Backend {
	b := &Backend{dbPath: dbPath, logger: logger.Named("catalog")}
	if !enabled {
		return b
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			b.logger.Warn("Catalog unavailable", map[string]interface{}{
				"path":  dbPath,
				"error": err.Error(),
			})
			return b
		}
	}

	conn, err := open(dbPath)
	if err != nil {
		b.logger.Warn("Catalog unavailable", map[string]interface{}{
			"path":  dbPath,
			"error": err.Error(),
		})
		return b
	}

	b.conn = conn
	b.enabled = true
	return b
}

// NewMem creates an in-memory catalog, used by tests
func NewMem(logger *logging.Logger) (*Backend, error) {
	conn, err := open(":memory:")
	if err != nil {
		return nil, err
	}
	return &Backend{conn: conn, enabled: true, logger: logger.Named("catalog")}, nil
}

func open(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := initializeSchema(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}
	return conn, nil
}

func initializeSchema(conn *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS buckets (
			name TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS packages (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			bucket TEXT NOT NULL,
			version TEXT,
			description TEXT,
			object_count INTEGER DEFAULT 0,
			total_size INTEGER DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_packages_name ON packages(name);
		CREATE INDEX IF NOT EXISTS idx_packages_bucket ON packages(bucket);

		CREATE TABLE IF NOT EXISTS objects (
			locator TEXT PRIMARY KEY,
			bucket TEXT NOT NULL,
			package_id TEXT,
			key TEXT NOT NULL,
			ext TEXT,
			size INTEGER DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_objects_bucket ON objects(bucket);
		CREATE INDEX IF NOT EXISTS idx_objects_package ON objects(package_id);
		CREATE INDEX IF NOT EXISTS idx_objects_ext ON objects(ext);
		CREATE INDEX IF NOT EXISTS idx_objects_created ON objects(created_at DESC);

		CREATE TABLE IF NOT EXISTS metadata (
			locator TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (locator, key)
		);
		CREATE INDEX IF NOT EXISTS idx_metadata_kv ON metadata(key, value);

		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);
		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := conn.Exec(schema)
	return err
}

// ID returns the backend identifier
func (b *Backend) ID() backends.BackendID { return backends.BackendCatalog }

// IsAvailable reports whether the database is open
func (b *Backend) IsAvailable() bool { return b.enabled && b.conn != nil }

// Capabilities lists what the catalog can evaluate
func (b *Backend) Capabilities() []string {
	return []string{
		backends.CapFreeText,
		backends.CapMetadataPredicates,
		backends.CapScopeBucket,
		backends.CapScopePackage,
		backends.CapAggregation,
	}
}

// Priority returns the selection tie-break priority
func (b *Backend) Priority() int { return 2 }

// Ping checks connectivity
func (b *Backend) Ping(ctx context.Context) error {
	if !b.IsAvailable() {
		return errors.New(errors.BackendUnavailable, "catalog database is not open", nil)
	}
	return b.conn.PingContext(ctx)
}

// Close closes the database
func (b *Backend) Close() error {
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	b.enabled = false
	return err
}

// Search translates the plan into SQL over packages or objects.
// Package discovery queries the packages table; everything else queries
// objects. Name matching is LIKE-based; relevance is a specificity score
// computed over the match, not SQL ordering.
func (b *Backend) Search(ctx context.Context, qp *plan.QueryPlan) (*backends.Page, error) {
	if !b.IsAvailable() {
		return nil, errors.New(errors.BackendUnavailable, "catalog database is not open", nil)
	}

	if qp.Intent == plan.IntentPackageDiscovery {
		return b.searchPackages(ctx, qp)
	}
	return b.searchObjects(ctx, qp)
}

func (b *Backend) searchObjects(ctx context.Context, qp *plan.QueryPlan) (*backends.Page, error) {
	where, args := objectPredicates(qp)

	var total int
	countQuery := "SELECT COUNT(*) FROM objects o" + where
	if err := b.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, b.queryError(ctx, err)
	}

	query := "SELECT o.locator, o.bucket, o.package_id, o.key, o.ext, o.size, o.created_at FROM objects o" +
		where + " ORDER BY o.created_at DESC LIMIT ?"
	rows, err := b.conn.QueryContext(ctx, query, append(args, pageSize(qp))...)
	if err != nil {
		return nil, b.queryError(ctx, err)
	}
	defer rows.Close()

	page := &backends.Page{Total: total, HasTotal: true}
	for rows.Next() {
		var locator, bucket, key, createdAt string
		var packageID, ext sql.NullString
		var size int64
		if err := rows.Scan(&locator, &bucket, &packageID, &key, &ext, &size, &createdAt); err != nil {
			return nil, errors.New(errors.BackendMalformedResponse, "catalog row scan failed", err)
		}

		meta := map[string]interface{}{
			"bucket":  bucket,
			"size":    size,
			"created": createdAt,
		}
		if packageID.Valid && packageID.String != "" {
			meta["package"] = packageID.String
		}
		if ext.Valid && ext.String != "" {
			meta["extension"] = ext.String
		}

		page.Results = append(page.Results, backends.SearchResult{
			ID:       locator,
			Type:     backends.TypeObject,
			Title:    key,
			Score:    specificity(key, qp.Terms),
			Backend:  backends.BackendCatalog,
			Metadata: meta,
			Locator:  locator,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, b.queryError(ctx, err)
	}
	return page, nil
}

func (b *Backend) searchPackages(ctx context.Context, qp *plan.QueryPlan) (*backends.Page, error) {
	where, args := packagePredicates(qp)

	var total int
	countQuery := "SELECT COUNT(*) FROM packages p" + where
	if err := b.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, b.queryError(ctx, err)
	}

	query := "SELECT p.id, p.name, p.bucket, p.version, p.description, p.object_count, p.total_size, p.created_at FROM packages p" +
		where + " ORDER BY p.created_at DESC LIMIT ?"
	rows, err := b.conn.QueryContext(ctx, query, append(args, pageSize(qp))...)
	if err != nil {
		return nil, b.queryError(ctx, err)
	}
	defer rows.Close()

	page := &backends.Page{Total: total, HasTotal: true}
	for rows.Next() {
		var id, name, bucket, createdAt string
		var version, description sql.NullString
		var objectCount, totalSize int64
		if err := rows.Scan(&id, &name, &bucket, &version, &description, &objectCount, &totalSize, &createdAt); err != nil {
			return nil, errors.New(errors.BackendMalformedResponse, "catalog row scan failed", err)
		}

		meta := map[string]interface{}{
			"bucket":      bucket,
			"objectCount": objectCount,
			"totalSize":   totalSize,
			"created":     createdAt,
		}
		if version.Valid && version.String != "" {
			meta["version"] = version.String
		}
		if description.Valid && description.String != "" {
			meta["description"] = description.String
		}

		page.Results = append(page.Results, backends.SearchResult{
			ID:       id,
			Type:     backends.TypePackage,
			Title:    name,
			Score:    specificity(name, qp.Terms),
			Backend:  backends.BackendCatalog,
			Metadata: meta,
			Locator:  bucket + "/" + name,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, b.queryError(ctx, err)
	}
	return page, nil
}

// objectPredicates builds the WHERE clause for an object query
func objectPredicates(qp *plan.QueryPlan) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	for _, term := range qp.Terms {
		clauses = append(clauses, "(o.key LIKE ? OR o.locator LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}

	switch qp.Scope {
	case plan.ScopeBucket:
		clauses = append(clauses, "o.bucket = ?")
		args = append(args, qp.Target)
	case plan.ScopePackage:
		clauses = append(clauses, "o.package_id = ?")
		args = append(args, qp.Target)
	}

	f := qp.Filters
	if f.Extension != "" {
		clauses = append(clauses, "o.ext = ?")
		args = append(args, f.Extension)
	}
	if f.SizeMin > 0 {
		clauses = append(clauses, "o.size >= ?")
		args = append(args, f.SizeMin)
	}
	if f.SizeMax > 0 {
		clauses = append(clauses, "o.size <= ?")
		args = append(args, f.SizeMax)
	}
	if !f.CreatedAfter.IsZero() {
		clauses = append(clauses, "o.created_at >= ?")
		args = append(args, f.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if !f.CreatedBefore.IsZero() {
		clauses = append(clauses, "o.created_at <= ?")
		args = append(args, f.CreatedBefore.UTC().Format(time.RFC3339))
	}
	for _, p := range f.Metadata {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM metadata m WHERE m.locator = o.locator AND m.key = ? AND m.value = ?)")
		args = append(args, p.Key, p.Value)
	}

	return whereClause(clauses), args
}

// packagePredicates builds the WHERE clause for a package query
func packagePredicates(qp *plan.QueryPlan) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	for _, term := range qp.Terms {
		clauses = append(clauses, "(p.name LIKE ? OR p.description LIKE ?)")
		pattern := "%" + term + "%"
		args = append(args, pattern, pattern)
	}

	switch qp.Scope {
	case plan.ScopeBucket:
		clauses = append(clauses, "p.bucket = ?")
		args = append(args, qp.Target)
	case plan.ScopePackage:
		clauses = append(clauses, "p.id = ?")
		args = append(args, qp.Target)
	}

	f := qp.Filters
	if !f.CreatedAfter.IsZero() {
		clauses = append(clauses, "p.created_at >= ?")
		args = append(args, f.CreatedAfter.UTC().Format(time.RFC3339))
	}
	if !f.CreatedBefore.IsZero() {
		clauses = append(clauses, "p.created_at <= ?")
		args = append(args, f.CreatedBefore.UTC().Format(time.RFC3339))
	}
	for _, p := range f.Metadata {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM metadata m WHERE m.locator = p.id AND m.key = ? AND m.value = ?)")
		args = append(args, p.Key, p.Value)
	}

	return whereClause(clauses), args
}

func whereClause(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func pageSize(qp *plan.QueryPlan) int {
	if qp.Limit > 0 {
		return qp.Limit
	}
	return 10
}

// specificity scores how precisely a name matches the query terms.
// LIKE matching has no relevance signal of its own, so the score grades the
// match kind: exact name beats prefix beats substring. The aggregator
// normalizes per-backend, so only the relative ordering matters here.
func specificity(name string, terms []string) float64 {
	if len(terms) == 0 {
		return 0.5
	}

	lower := strings.ToLower(name)
	var sum float64
	for _, term := range terms {
		t := strings.ToLower(term)
		switch {
		case lower == t:
			sum += 1.0
		case strings.HasPrefix(lower, t):
			sum += 0.8
		case strings.Contains(lower, t):
			sum += 0.6
		default:
			// Matched on another column (locator, description).
			sum += 0.3
		}
	}
	return sum / float64(len(terms))
}

func (b *Backend) queryError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New(errors.BackendUnavailable, "catalog query failed", err)
}
