package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemotree/mnemocore/internal/locomo"
)

var ingestDatasetPath string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a LoCoMo dataset into the benchmark tenant as memories",
	Long: `ingest stores every conversation's personas and dialogue turns as
memories, one session per conversation. Run it once before "run"
(which also ingests inline, so this is mainly useful to warm a tenant
up ahead of time or to inspect ingestion counts on their own).`,
	Run: func(cmd *cobra.Command, args []string) {
		runIngest()
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDatasetPath, "dataset", "auto", `dataset path, URL, or "auto" to download the upstream LoCoMo-10 set`)
	rootCmd.AddCommand(ingestCmd)
}

func runIngest() {
	svc := loadService()
	tenant := requireTenant()

	dataset, err := locomo.LoadDataset(ingestDatasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading dataset: %v\n", err)
		os.Exit(1)
	}

	ingester := locomo.NewIngester(svc, tenant)
	result, err := ingester.Ingest(context.Background(), dataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error ingesting dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ingested %d conversations: %d turns, %d memories (%d persona), %d QA questions, in %s\n",
		result.ConversationsIngested, result.TotalTurns, result.TotalMemories,
		result.PersonaMemories, result.TotalQAQuestions, result.Duration)
}

func requireTenant() string {
	if tenantID == "" {
		fmt.Fprintln(os.Stderr, "error: --tenant is required")
		os.Exit(1)
	}
	return tenantID
}
