package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lakefind/internal/backends"
	"lakefind/internal/search"
)

var (
	searchScope    string
	searchTarget   string
	searchBackends string
	searchLimit    int
	searchFormat   string
	searchExplain  bool
	searchTimeout  time.Duration
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the lake",
	Long: `Search the data lake by fanning the query out across every backend that
can serve it and merging the answers into one ranked list.

The query text may carry filters in plain words: sizes ("larger than 100MB"),
dates ("created after 2025-01-01", "in the last 30 days"), extensions ("csv
files", "*.parquet"), and metadata predicates ("owner=data-eng").

Examples:
  lakefind search "quarterly sales"
  lakefind search "csv files larger than 100MB"
  lakefind search "churn" --scope=bucket --target=analytics
  lakefind search "weather" --backends=catalog --limit=5 --explain`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchScope, "scope", "global", "Search scope (global, bucket, package)")
	searchCmd.Flags().StringVar(&searchTarget, "target", "", "Bucket or package name for scoped searches")
	searchCmd.Flags().StringVar(&searchBackends, "backends", "", "Use exactly these backends (comma-separated)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum number of results (0 = server default)")
	searchCmd.Flags().StringVar(&searchFormat, "format", "human", "Output format (json, human)")
	searchCmd.Flags().BoolVar(&searchExplain, "explain", false, "Attach backend selection details to the response")
	searchCmd.Flags().DurationVar(&searchTimeout, "timeout", 0, "Overall request deadline (0 = policy default)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg, searchFormat)

	engine := mustBuildEngine(cfg, logger)
	defer engine.Close()

	var requested []string
	if searchBackends != "" {
		requested = strings.Split(searchBackends, ",")
	}

	ctx := context.Background()
	if searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, searchTimeout)
		defer cancel()
	}

	resp, err := engine.Search(ctx, search.Request{
		Query:    args[0],
		Scope:    searchScope,
		Target:   searchTarget,
		Backends: requested,
		Limit:    searchLimit,
		Explain:  searchExplain,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	output, err := FormatResponse(convertSearchResponse(args[0], resp), OutputFormat(searchFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

// SearchResponseCLI is the search command's output shape
type SearchResponseCLI struct {
	Query         string          `json:"query"`
	TotalEstimate int             `json:"totalEstimate"`
	DurationMs    int64           `json:"durationMs"`
	Results       []ResultCLI     `json:"results"`
	PerBackend    []OutcomeCLI    `json:"perBackend"`
	Explanation   *ExplanationCLI `json:"explanation,omitempty"`
}

// ResultCLI is one merged hit
type ResultCLI struct {
	Type     string                 `json:"type"`
	Title    string                 `json:"title"`
	Locator  string                 `json:"locator"`
	Score    float64                `json:"score"`
	Sources  []string               `json:"sources,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// OutcomeCLI is one backend's diagnostic entry
type OutcomeCLI struct {
	Backend   string `json:"backend"`
	Count     int    `json:"count"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Fallback  bool   `json:"fallback,omitempty"`
}

func convertSearchResponse(query string, resp *backends.SearchResponse) *SearchResponseCLI {
	out := &SearchResponseCLI{
		Query:         query,
		TotalEstimate: resp.TotalEstimate,
		DurationMs:    resp.DurationMs,
		Results:       make([]ResultCLI, 0, len(resp.Results)),
		PerBackend:    convertOutcomes(resp.PerBackend),
	}

	for _, r := range resp.Results {
		sources := make([]string, 0, len(r.Sources))
		for _, s := range r.Sources {
			sources = append(sources, string(s))
		}
		out.Results = append(out.Results, ResultCLI{
			Type:     string(r.Type),
			Title:    r.Title,
			Locator:  r.Locator,
			Score:    r.Score,
			Sources:  sources,
			Metadata: r.Metadata,
		})
	}

	if resp.Explanation != nil {
		out.Explanation = convertExplanation(resp.Explanation)
	}
	return out
}

func convertOutcomes(outcomes map[backends.BackendID]backends.Outcome) []OutcomeCLI {
	out := make([]OutcomeCLI, 0, len(outcomes))
	for _, oc := range outcomes {
		out = append(out, OutcomeCLI{
			Backend:   string(oc.BackendID),
			Count:     oc.Count,
			LatencyMs: oc.LatencyMs,
			Error:     oc.Error,
			ErrorCode: oc.ErrorCode,
			Skipped:   oc.Skipped,
			Fallback:  oc.Fallback,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Backend < out[j].Backend })
	return out
}
