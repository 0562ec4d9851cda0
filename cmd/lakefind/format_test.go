package main

import (
	"strings"
	"testing"
)

func sampleSearchResponse() *SearchResponseCLI {
	return &SearchResponseCLI{
		Query:         "quarterly sales",
		TotalEstimate: 2,
		DurationMs:    41,
		Results: []ResultCLI{
			{
				Type: "object", Title: "q1.csv",
				Locator: "raw-data/sales/q1.csv", Score: 1.0,
				Sources: []string{"fulltext", "catalog"},
			},
			{
				Type: "object", Title: "q2.parquet",
				Locator: "raw-data/sales/q2.parquet", Score: 0.7,
			},
		},
		PerBackend: []OutcomeCLI{
			{Backend: "catalog", Count: 2, LatencyMs: 12},
			{Backend: "fulltext", Count: 1, LatencyMs: 30},
			{Backend: "objectstore", Skipped: true, Error: "unavailable"},
		},
	}
}

func TestFormatResponseJSON(t *testing.T) {
	out, err := FormatResponse(sampleSearchResponse(), FormatJSON)
	if err != nil {
		t.Fatalf("FormatResponse: %v", err)
	}
	for _, want := range []string{`"query": "quarterly sales"`, `"totalEstimate": 2`, `"skipped": true`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON output missing %s", want)
		}
	}
}

func TestFormatSearchHuman(t *testing.T) {
	out, err := FormatResponse(sampleSearchResponse(), FormatHuman)
	if err != nil {
		t.Fatalf("FormatResponse: %v", err)
	}

	for _, want := range []string{
		"quarterly sales",
		"q1.csv",
		"confirmed by fulltext, catalog",
		"objectstore: skipped",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("human output missing %q\n%s", want, out)
		}
	}
}

func TestFormatExplainHuman(t *testing.T) {
	exp := &ExplanationCLI{
		Intent: "file_search",
		Terms:  []string{"sales"},
		Scope:  "bucket",
		Target: "raw-data",
		Selected: []BackendCostCLI{
			{Backend: "fulltext", EstimatedMs: 62},
		},
		Alternatives: []AlternativeCLI{
			{Backend: "objectstore", Reason: "unavailable"},
		},
	}

	out, err := FormatResponse(exp, FormatHuman)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"file_search", "bucket (raw-data)", "fulltext", "objectstore: unavailable"} {
		if !strings.Contains(out, want) {
			t.Errorf("explain output missing %q", want)
		}
	}
}

func TestFormatUnsupported(t *testing.T) {
	if _, err := FormatResponse(sampleSearchResponse(), OutputFormat("xml")); err == nil {
		t.Error("unsupported format should error")
	}
}
