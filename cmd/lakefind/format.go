package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *SearchResponseCLI:
		return formatSearchHuman(v)
	case *ExplanationCLI:
		return formatExplainHuman(v)
	case *SuggestResponseCLI:
		return formatSuggestHuman(v)
	case *StatusResponseCLI:
		return formatStatusHuman(v)
	case *IndexResponseCLI:
		return formatIndexHuman(v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatSearchHuman(resp *SearchResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Search Results for: %s\n", resp.Query))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("About %d matches (%dms)\n\n", resp.TotalEstimate, resp.DurationMs))

	for i, r := range resp.Results {
		b.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, r.Title, r.Type))
		b.WriteString(fmt.Sprintf("   Locator: %s\n", r.Locator))
		b.WriteString(fmt.Sprintf("   Score: %.2f", r.Score))
		if len(r.Sources) > 1 {
			b.WriteString(fmt.Sprintf("  (confirmed by %s)", strings.Join(r.Sources, ", ")))
		}
		b.WriteString("\n")
		if size, ok := r.Metadata["size"]; ok {
			b.WriteString(fmt.Sprintf("   Size: %v\n", size))
		}
		b.WriteString("\n")
	}

	b.WriteString("Backends:\n")
	for _, oc := range resp.PerBackend {
		switch {
		case oc.Skipped:
			b.WriteString(fmt.Sprintf("  - %s: skipped (%s)\n", oc.Backend, oc.Error))
		case oc.Error != "":
			b.WriteString(fmt.Sprintf("  ✗ %s: %s [%s]\n", oc.Backend, oc.Error, oc.ErrorCode))
		default:
			marker := "✓"
			note := ""
			if oc.Fallback {
				note = " (fallback)"
			}
			b.WriteString(fmt.Sprintf("  %s %s: %d results in %dms%s\n",
				marker, oc.Backend, oc.Count, oc.LatencyMs, note))
		}
	}

	if resp.Explanation != nil {
		b.WriteString("\n")
		exp, err := formatExplainHuman(resp.Explanation)
		if err != nil {
			return "", err
		}
		b.WriteString(exp)
	}

	return b.String(), nil
}

func formatExplainHuman(resp *ExplanationCLI) (string, error) {
	var b strings.Builder

	b.WriteString("Query Plan\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Intent: %s\n", resp.Intent))
	if len(resp.Terms) > 0 {
		b.WriteString(fmt.Sprintf("Terms: %s\n", strings.Join(resp.Terms, ", ")))
	}
	b.WriteString(fmt.Sprintf("Scope: %s", resp.Scope))
	if resp.Target != "" {
		b.WriteString(fmt.Sprintf(" (%s)", resp.Target))
	}
	b.WriteString("\n\n")

	b.WriteString("Backends selected:\n")
	for _, sel := range resp.Selected {
		b.WriteString(fmt.Sprintf("  - %s (est. %.0fms)\n", sel.Backend, sel.EstimatedMs))
	}
	if resp.Fallback {
		b.WriteString("  (fallback of last resort: every eligible backend was unavailable)\n")
	}

	if len(resp.Alternatives) > 0 {
		b.WriteString("\nNot selected:\n")
		for _, alt := range resp.Alternatives {
			b.WriteString(fmt.Sprintf("  - %s: %s\n", alt.Backend, alt.Reason))
		}
	}

	return b.String(), nil
}

func formatSuggestHuman(resp *SuggestResponseCLI) (string, error) {
	var b strings.Builder

	if len(resp.Suggestions) == 0 {
		b.WriteString(fmt.Sprintf("No suggestions for %q\n", resp.Prefix))
		return b.String(), nil
	}

	for _, s := range resp.Suggestions {
		b.WriteString(fmt.Sprintf("%-30s (%s)\n", s.Text, s.Source))
	}
	return b.String(), nil
}

func formatStatusHuman(resp *StatusResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("lakefind status - v%s\n", resp.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	healthIcon := "✓"
	healthText := "Healthy"
	if !resp.Healthy {
		healthIcon = "✗"
		healthText = "Degraded"
	}
	b.WriteString(fmt.Sprintf("%s System: %s\n\n", healthIcon, healthText))

	b.WriteString("Backends:\n")
	for _, be := range resp.Backends {
		icon := "✓"
		if !be.Available {
			icon = "✗"
		}
		b.WriteString(fmt.Sprintf("  %s %s: %s", icon, be.ID, be.Status))
		if be.PingMs > 0 {
			b.WriteString(fmt.Sprintf(" (ping %dms)", be.PingMs))
		}
		b.WriteString("\n")
		if len(be.Capabilities) > 0 {
			b.WriteString(fmt.Sprintf("     Capabilities: %s\n", strings.Join(be.Capabilities, ", ")))
		}
		if be.Details != "" {
			b.WriteString(fmt.Sprintf("     %s\n", be.Details))
		}
	}

	if resp.Catalog != nil {
		b.WriteString(fmt.Sprintf("\nCatalog: %d packages, %d objects\n",
			resp.Catalog.Packages, resp.Catalog.Objects))
	}
	if resp.FullTextDocs > 0 {
		b.WriteString(fmt.Sprintf("Full-text index: %d documents\n", resp.FullTextDocs))
	}

	return b.String(), nil
}

func formatIndexHuman(resp *IndexResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString("Index refresh complete\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Root: %s\n", resp.Root))
	b.WriteString(fmt.Sprintf("Buckets: %d\n", resp.Buckets))
	b.WriteString(fmt.Sprintf("Packages: %d\n", resp.Packages))
	b.WriteString(fmt.Sprintf("Objects: %d\n", resp.Objects))
	if resp.Skipped > 0 {
		b.WriteString(fmt.Sprintf("Skipped: %d\n", resp.Skipped))
	}
	b.WriteString(fmt.Sprintf("Duration: %dms\n", resp.DurationMs))

	return b.String(), nil
}
