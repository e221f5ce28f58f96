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
	Use:   "mnemod",
	Short: "Long-term memory service for conversational agents",
	Long: `mnemod stores, recalls, and curates long-term memory for conversational
agents across tenants and sessions.

Examples:
  mnemod serve --mcp               # run the MCP server over stdio
  mnemod serve --rest              # run the REST API
  mnemod remember --tenant acme "the deploy runbook lives in ops/runbooks"
  mnemod recall --tenant acme "deploy runbook"
  mnemod doctor`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&tenantID, "tenant", "T", "", "tenant ID for CLI memory operations")
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
// exiting the process on failure — every CLI command shares this.
func loadService() (*mnemo.Service, *config.Config) {
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
	return svc, cfg
}

func requireTenant() string {
	if tenantID == "" {
		fmt.Fprintln(os.Stderr, "error: --tenant is required")
		os.Exit(1)
	}
	return tenantID
}
