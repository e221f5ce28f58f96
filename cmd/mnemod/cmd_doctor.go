package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemotree/mnemocore/internal/diagnostics"
	"github.com/mnemotree/mnemocore/pkg/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and optional dependency reachability",
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor() {
	fmt.Println("mnemod system check")
	fmt.Println("====================")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("configuration... ERROR: %v\n", err)
		return
	}
	fmt.Println("configuration... OK")
	fmt.Printf("  config dir: %s\n", config.ConfigPath())
	fmt.Printf("  storage backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("  rest api: %s:%d (enabled: %v)\n", cfg.RestAPI.Host, cfg.RestAPI.Port, cfg.RestAPI.Enabled)
	fmt.Println()

	report := diagnostics.Check(cfg)
	printDependency("embedding provider", report.Embedding)
	printDependency("qdrant", report.Qdrant)
	printDependency("neo4j", report.Neo4j)

	fmt.Println()
	if report.EmbeddingAvailable() {
		fmt.Println("all required dependencies are available.")
	} else {
		fmt.Println("the configured embedding provider is unreachable; store/recall will fail until it is.")
	}
}

func printDependency(label string, info diagnostics.Info) {
	fmt.Printf("%s... %s\n", label, info.Status)
	if info.URL != "" {
		fmt.Printf("  url: %s\n", info.URL)
	}
	if info.Message != "" {
		fmt.Printf("  %s\n", info.Message)
	}
	if len(info.Models) > 0 {
		fmt.Printf("  models: %v\n", info.Models)
	}
}
