package catalog

import (
	"context"
	"time"

	"lakefind/internal/errors"
)

// PackageRecord is the catalog's view of one package
type PackageRecord struct {
	ID          string
	Name        string
	Bucket      string
	Version     string
	Description string
	ObjectCount int64
	TotalSize   int64
	CreatedAt   time.Time
}

// ObjectRecord is the catalog's view of one stored object
type ObjectRecord struct {
	Locator   string
	Bucket    string
	PackageID string
	Key       string
	Ext       string
	Size      int64
	CreatedAt time.Time
}

// UpsertBucket registers a bucket
func (b *Backend) UpsertBucket(ctx context.Context, name string, createdAt time.Time) error {
	if !b.IsAvailable() {
		return errors.New(errors.BackendUnavailable, "catalog database is not open", nil)
	}
	_, err := b.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO buckets (name, created_at) VALUES (?, ?)`,
		name, createdAt.UTC().Format(time.RFC3339))
	return err
}

// UpsertPackage inserts or replaces a package record
func (b *Backend) UpsertPackage(ctx context.Context, rec PackageRecord) error {
	if !b.IsAvailable() {
		return errors.New(errors.BackendUnavailable, "catalog database is not open", nil)
	}
	_, err := b.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO packages (id, name, bucket, version, description, object_count, total_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Bucket, rec.Version, rec.Description,
		rec.ObjectCount, rec.TotalSize, rec.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// UpsertObject inserts or replaces an object record
func (b *Backend) UpsertObject(ctx context.Context, rec ObjectRecord) error {
	if !b.IsAvailable() {
		return errors.New(errors.BackendUnavailable, "catalog database is not open", nil)
	}
	_, err := b.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO objects (locator, bucket, package_id, key, ext, size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Locator, rec.Bucket, rec.PackageID, rec.Key, rec.Ext,
		rec.Size, rec.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

// SetMetadata attaches one key/value pair to a package or object locator
func (b *Backend) SetMetadata(ctx context.Context, locator, key, value string) error {
	if !b.IsAvailable() {
		return errors.New(errors.BackendUnavailable, "catalog database is not open", nil)
	}
	_, err := b.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO metadata (locator, key, value) VALUES (?, ?, ?)`,
		locator, key, value)
	return err
}

// Counts reports the catalog's package and object totals, for status output
func (b *Backend) Counts(ctx context.Context) (packages, objects int64, err error) {
	if !b.IsAvailable() {
		return 0, 0, errors.New(errors.BackendUnavailable, "catalog database is not open", nil)
	}
	if err = b.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM packages`).Scan(&packages); err != nil {
		return 0, 0, err
	}
	if err = b.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects`).Scan(&objects); err != nil {
		return 0, 0, err
	}
	return packages, objects, nil
}
