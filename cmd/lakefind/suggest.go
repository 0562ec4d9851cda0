package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lakefind/internal/search"
)

var (
	suggestLimit  int
	suggestFormat string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [prefix]",
	Short: "Suggest query completions for a prefix",
	Long: `Suggest completes a partial query from the known vocabulary: recognized
file extensions and filter phrases, plus terms from recent successful
searches in this process.

Examples:
  lakefind suggest par
  lakefind suggest "larger"`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSuggest,
}

func init() {
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", 10, "Maximum number of suggestions")
	suggestCmd.Flags().StringVar(&suggestFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggest(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig()
	logger := newLogger(cfg, suggestFormat)

	engine := mustBuildEngine(cfg, logger)
	defer engine.Close()

	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	resp := &SuggestResponseCLI{
		Prefix:      prefix,
		Suggestions: engine.Suggest(prefix, suggestLimit),
	}

	output, err := FormatResponse(resp, OutputFormat(suggestFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

// SuggestResponseCLI is the suggest command's output shape
type SuggestResponseCLI struct {
	Prefix      string              `json:"prefix"`
	Suggestions []search.Suggestion `json:"suggestions"`
}
