package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lakefind/internal/backends/catalog"
	"lakefind/internal/backends/fulltext"
	"lakefind/internal/logging"
)

var indexFormat string

// maxBodyBytes bounds how much of a text object is indexed for full-text
// search
const maxBodyBytes = 1 << 20

// textExtensions are object types whose content is worth full-text indexing
var textExtensions = map[string]bool{
	"txt": true, "md": true, "csv": true, "tsv": true, "json": true,
	"jsonl": true, "ndjson": true, "xml": true, "yaml": true, "yml": true,
	"log": true, "sql": true,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan the lake root into the catalog and the full-text index",
	Long: `Index walks the object store root and refreshes the catalog and the
full-text index from what is actually on disk. Top-level directories become
buckets; their immediate subdirectories become packages. Text objects get
their content indexed, everything else is indexed by name and metadata.`,
	Run: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg, indexFormat)

	engine := mustBuildEngine(cfg, logger)
	defer engine.Close()

	cat := engine.Catalog()
	ft := engine.FullText()
	if (cat == nil || !cat.IsAvailable()) && (ft == nil || !ft.IsAvailable()) {
		fmt.Fprintln(os.Stderr, "Error: neither the catalog nor the full-text index is enabled")
		os.Exit(1)
	}

	start := time.Now()
	resp, err := indexRoot(context.Background(), cfg.Backends.ObjectStore.RootDir, cat, ft, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error indexing: %v\n", err)
		os.Exit(1)
	}
	resp.DurationMs = time.Since(start).Milliseconds()

	output, err := FormatResponse(resp, OutputFormat(indexFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

// IndexResponseCLI is the index command's output shape
type IndexResponseCLI struct {
	Root       string `json:"root"`
	Buckets    int    `json:"buckets"`
	Packages   int    `json:"packages"`
	Objects    int    `json:"objects"`
	Skipped    int    `json:"skipped"`
	DurationMs int64  `json:"durationMs"`
}

type packageStats struct {
	bucket string
	count  int64
	size   int64
	oldest time.Time
}

func indexRoot(ctx context.Context, root string, cat *catalog.Backend, ft *fulltext.Backend, logger *logging.Logger) (*IndexResponseCLI, error) {
	resp := &IndexResponseCLI{Root: root}

	buckets := map[string]time.Time{}
	packages := map[string]*packageStats{}
	var docs []fulltext.Document

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			resp.Skipped++
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			resp.Skipped++
			return nil
		}
		rel = filepath.ToSlash(rel)

		parts := strings.Split(rel, "/")
		if len(parts) < 2 {
			resp.Skipped++ // files at the root belong to no bucket
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			resp.Skipped++
			return nil
		}

		bucket := parts[0]
		key := strings.Join(parts[1:], "/")
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(key)), ".")

		pkg := ""
		if len(parts) >= 3 {
			pkg = parts[1]
		}

		if _, ok := buckets[bucket]; !ok {
			buckets[bucket] = info.ModTime()
		}
		if pkg != "" {
			pkgID := bucket + "/" + pkg
			st, ok := packages[pkgID]
			if !ok {
				st = &packageStats{bucket: bucket, oldest: info.ModTime()}
				packages[pkgID] = st
			}
			st.count++
			st.size += info.Size()
			if info.ModTime().Before(st.oldest) {
				st.oldest = info.ModTime()
			}
		}

		if cat != nil && cat.IsAvailable() {
			rec := catalog.ObjectRecord{
				Locator:   rel,
				Bucket:    bucket,
				Key:       key,
				Ext:       ext,
				Size:      info.Size(),
				CreatedAt: info.ModTime(),
			}
			if pkg != "" {
				rec.PackageID = bucket + "/" + pkg
			}
			if err := cat.UpsertObject(ctx, rec); err != nil {
				return err
			}
		}

		if ft != nil && ft.IsAvailable() {
			docs = append(docs, fulltext.Document{
				Locator: rel,
				Bucket:  bucket,
				Package: pkg,
				Title:   filepath.Base(key),
				Body:    readBody(path, ext, info.Size()),
				Ext:     ext,
				Size:    float64(info.Size()),
				Created: info.ModTime(),
			})
		}

		resp.Objects++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cat != nil && cat.IsAvailable() {
		for name, created := range buckets {
			if err := cat.UpsertBucket(ctx, name, created); err != nil {
				return nil, err
			}
		}
		for id, st := range packages {
			name := id[strings.IndexByte(id, '/')+1:]
			rec := catalog.PackageRecord{
				ID:          id,
				Name:        name,
				Bucket:      st.bucket,
				ObjectCount: st.count,
				TotalSize:   st.size,
				CreatedAt:   st.oldest,
			}
			if err := cat.UpsertPackage(ctx, rec); err != nil {
				return nil, err
			}
		}
	}

	if ft != nil && ft.IsAvailable() && len(docs) > 0 {
		if err := ft.IndexBatch(ctx, docs); err != nil {
			return nil, err
		}
	}

	resp.Buckets = len(buckets)
	resp.Packages = len(packages)

	logger.Info("Index refresh complete", map[string]interface{}{
		"buckets":  resp.Buckets,
		"packages": resp.Packages,
		"objects":  resp.Objects,
		"skipped":  resp.Skipped,
	})
	return resp, nil
}

// readBody returns the content of text objects, truncated, or "" for binary
// or oversized ones
func readBody(path, ext string, size int64) string {
	if !textExtensions[ext] || size == 0 {
		return ""
	}

	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	n := size
	if n > maxBodyBytes {
		n = maxBodyBytes
	}
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return ""
	}
	return string(buf[:read])
}
