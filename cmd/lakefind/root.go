package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"lakefind/internal/config"
	"lakefind/internal/logging"
	"lakefind/internal/search"
	"lakefind/internal/version"
)

var (
	// lakeRoot is the CLI --root flag value: where .lakefind/ lives
	lakeRoot string
)

var rootCmd = &cobra.Command{
	Use:   "lakefind",
	Short: "lakefind - federated data lake search",
	Long: `lakefind answers natural-ish queries over a data lake by fanning them out
across heterogeneous backends (a full-text index, a metadata catalog, and the
raw object listing) and merging the answers into one ranked result list.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("lakefind version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&lakeRoot, "root", ".",
		"Lake root directory (where .lakefind/ lives)")
}

// mustLoadConfig loads configuration or exits
func mustLoadConfig() *config.Config {
	cfg, err := config.LoadConfig(lakeRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the logger from config, quieter when the command's own
// output is JSON so logs never interleave with it on a terminal
func newLogger(cfg *config.Config, outputFormat string) *logging.Logger {
	level := cfg.Logging.Level
	if outputFormat == string(FormatJSON) && level == "info" {
		level = "warn"
	}
	return logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(level),
	})
}

// mustBuildEngine wires the full pipeline or exits
func mustBuildEngine(cfg *config.Config, logger *logging.Logger) *search.Engine {
	resolvePaths(cfg)
	engine, err := search.Build(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building search engine: %v\n", err)
		os.Exit(1)
	}
	return engine
}

// resolvePaths anchors relative backend paths at the lake root, so the CLI
// behaves the same from any working directory
func resolvePaths(cfg *config.Config) {
	cfg.Backends.FullText.IndexPath = againstRoot(cfg.Backends.FullText.IndexPath)
	cfg.Backends.Catalog.DBPath = againstRoot(cfg.Backends.Catalog.DBPath)
	cfg.Backends.ObjectStore.RootDir = againstRoot(cfg.Backends.ObjectStore.RootDir)
	cfg.VocabularyPath = againstRoot(cfg.VocabularyPath)
}

func againstRoot(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(lakeRoot, path)
}
