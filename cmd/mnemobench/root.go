package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemotree/mnemocore/internal/embedding"
	"github.com/mnemotree/mnemocore/internal/logging"
	"github.com/mnemotree/mnemocore/internal/mnemo"
	"github.com/mnemotree/mnemocore/pkg/config"
)

// Version is set during build.
var Version = "0.1.0"

var (
	tenantID string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "mnemobench",
	Short: "LoCoMo retrieval-quality benchmark for mnemocore",
	Long: `mnemobench ingests a LoCoMo long-term conversational memory dataset
into a mnemocore service, runs a retrieval strategy against its
annotated questions, and scores the retrieved context against the
ground-truth answers.

Examples:
  mnemobench ingest --tenant bench-1 --dataset locomo10.json
  mnemobench run --tenant bench-1 --strategy recall --top-k 10
  mnemobench report --latest`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "T", "bench", "tenant ID to isolate benchmark data under")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	cobra.OnInitialize(func() {
		logging.Init(logging.Config{Level: logLevel, Format: "console", Output: "stderr"})
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadService loads configuration and wires a mnemo.Service from it,
// exiting the process on failure.
func loadService() *mnemo.Service {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	gateway := embedding.New(&cfg.Embedding)
	svc, err := mnemo.New(cfg, gateway)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing service: %v\n", err)
		os.Exit(1)
	}
	return svc
}
