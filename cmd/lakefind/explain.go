package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"lakefind/internal/backends"
	"lakefind/internal/search"
)

var (
	explainScope  string
	explainTarget string
	explainFormat string
)

var explainCmd = &cobra.Command{
	Use:   "explain <query>",
	Short: "Show how a query would be executed, without running it",
	Long: `Explain parses the query and reports which backends would serve it, the
estimated cost per backend, and why the others were left out. No backend is
actually queried.

Examples:
  lakefind explain "csv files larger than 100MB"
  lakefind explain "churn" --scope=bucket --target=analytics`,
	Args: cobra.ExactArgs(1),
	Run:  runExplain,
}

func init() {
	explainCmd.Flags().StringVar(&explainScope, "scope", "global", "Search scope (global, bucket, package)")
	explainCmd.Flags().StringVar(&explainTarget, "target", "", "Bucket or package name for scoped searches")
	explainCmd.Flags().StringVar(&explainFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg, explainFormat)

	engine := mustBuildEngine(cfg, logger)
	defer engine.Close()

	exp := engine.Explain(search.Request{
		Query:  args[0],
		Scope:  explainScope,
		Target: explainTarget,
	})

	output, err := FormatResponse(convertExplanation(exp), OutputFormat(explainFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

// ExplanationCLI is the explain command's output shape
type ExplanationCLI struct {
	Intent       string           `json:"intent"`
	Terms        []string         `json:"terms"`
	Scope        string           `json:"scope"`
	Target       string           `json:"target,omitempty"`
	Selected     []BackendCostCLI `json:"backendsSelected"`
	Alternatives []AlternativeCLI `json:"alternatives,omitempty"`
	Fallback     bool             `json:"fallback,omitempty"`
}

// BackendCostCLI pairs a selected backend with its estimated cost
type BackendCostCLI struct {
	Backend     string  `json:"backend"`
	EstimatedMs float64 `json:"estimatedMs"`
}

// AlternativeCLI is a backend that was not selected, with the reason
type AlternativeCLI struct {
	Backend string `json:"backend"`
	Reason  string `json:"reason"`
}

func convertExplanation(exp *backends.Explanation) *ExplanationCLI {
	out := &ExplanationCLI{
		Intent:   string(exp.Plan.Intent),
		Terms:    exp.Plan.Terms,
		Scope:    string(exp.Plan.Scope),
		Target:   exp.Plan.Target,
		Fallback: exp.Fallback,
	}

	for _, id := range exp.Selected {
		out.Selected = append(out.Selected, BackendCostCLI{
			Backend:     string(id),
			EstimatedMs: exp.EstimatedMs[id],
		})
	}

	for _, alt := range exp.Alternatives {
		out.Alternatives = append(out.Alternatives, AlternativeCLI{
			Backend: string(alt.BackendID),
			Reason:  alt.Reason,
		})
	}
	sort.Slice(out.Alternatives, func(i, j int) bool {
		return out.Alternatives[i].Backend < out.Alternatives[j].Backend
	})

	return out
}
