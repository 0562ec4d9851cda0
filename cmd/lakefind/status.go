package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"lakefind/internal/version"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend availability and health",
	Long: `Status reports each configured backend: whether it is reachable, its
current health classification, and its index sizes where the backend can
report them.`,
	Run: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg, statusFormat)

	engine := mustBuildEngine(cfg, logger)
	defer engine.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	orch := engine.Orchestrator()
	health := orch.Monitor().Snapshot()

	resp := &StatusResponseCLI{Version: version.Version}
	for id, b := range orch.Registry() {
		entry := BackendStatusCLI{
			ID:           string(id),
			Available:    b.IsAvailable(),
			Capabilities: b.Capabilities(),
			Status:       "healthy",
		}

		start := time.Now()
		if err := b.Ping(ctx); err != nil {
			entry.Available = false
			entry.Details = err.Error()
		} else {
			entry.PingMs = time.Since(start).Milliseconds()
		}

		if h, ok := health[id]; ok {
			entry.Status = string(h.Status)
			entry.ConsecutiveFailures = h.ConsecutiveFailures
			entry.AvgLatencyMs = h.AvgLatencyMs
		}
		resp.Backends = append(resp.Backends, entry)
	}
	sort.Slice(resp.Backends, func(i, j int) bool { return resp.Backends[i].ID < resp.Backends[j].ID })

	resp.Healthy = true
	for _, b := range resp.Backends {
		if !b.Available || b.Status == "unavailable" {
			resp.Healthy = false
		}
	}

	if cat := engine.Catalog(); cat != nil && cat.IsAvailable() {
		if packages, objects, err := cat.Counts(ctx); err == nil {
			resp.Catalog = &CatalogStatsCLI{Packages: packages, Objects: objects}
		}
	}
	if ft := engine.FullText(); ft != nil && ft.IsAvailable() {
		if n, err := ft.DocCount(); err == nil {
			resp.FullTextDocs = int64(n)
		}
	}

	output, err := FormatResponse(resp, OutputFormat(statusFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

// StatusResponseCLI is the status command's output shape
type StatusResponseCLI struct {
	Version      string             `json:"version"`
	Healthy      bool               `json:"healthy"`
	Backends     []BackendStatusCLI `json:"backends"`
	Catalog      *CatalogStatsCLI   `json:"catalog,omitempty"`
	FullTextDocs int64              `json:"fullTextDocs,omitempty"`
}

// BackendStatusCLI is one backend's status entry
type BackendStatusCLI struct {
	ID                  string   `json:"id"`
	Available           bool     `json:"available"`
	Status              string   `json:"status"`
	Capabilities        []string `json:"capabilities"`
	PingMs              int64    `json:"pingMs,omitempty"`
	AvgLatencyMs        float64  `json:"avgLatencyMs,omitempty"`
	ConsecutiveFailures int      `json:"consecutiveFailures,omitempty"`
	Details             string   `json:"details,omitempty"`
}

// CatalogStatsCLI is the catalog's size summary
type CatalogStatsCLI struct {
	Packages int64 `json:"packages"`
	Objects  int64 `json:"objects"`
}
