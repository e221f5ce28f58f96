package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemotree/mnemocore/internal/locomo"
)

var (
	runDatasetPath string
	runStrategy    string
	runTopK        int
	runCategory    string
	runVerbose     bool
	runSkipIngest  bool
	runResultsDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest a dataset and evaluate a retrieval strategy against it",
	Long: `run ingests the dataset (unless --skip-ingest is set, which assumes a
prior "ingest" or "run" already populated the tenant in a durable
backend) and then answers every annotated question by retrieving
context and scoring it against the ground-truth answer. Evidence
matching (did retrieval surface the dialogue turns the answer
actually depends on) only works within the ingesting process, so
--skip-ingest loses that signal against an in-memory backend.`,
	Run: func(cmd *cobra.Command, args []string) {
		runEvaluate()
	},
}

func init() {
	runCmd.Flags().StringVar(&runDatasetPath, "dataset", "auto", `dataset path, URL, or "auto" to download the upstream LoCoMo-10 set`)
	runCmd.Flags().StringVar(&runStrategy, "strategy", "recall", "retrieval strategy: recall or direct")
	runCmd.Flags().IntVar(&runTopK, "top-k", 10, "memories to retrieve per question")
	runCmd.Flags().StringVar(&runCategory, "category", "", "restrict to one question category (single_hop, multi_hop, temporal, commonsense, adversarial)")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "log per-question failures")
	runCmd.Flags().BoolVar(&runSkipIngest, "skip-ingest", false, "assume the tenant is already ingested")
	runCmd.Flags().StringVar(&runResultsDir, "results-dir", "./benchmark-results", "directory to save the run's JSON results under")
	rootCmd.AddCommand(runCmd)
}

func runEvaluate() {
	svc := loadService()
	tenant := requireTenant()
	ctx := context.Background()

	dataset, err := locomo.LoadDataset(runDatasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading dataset: %v\n", err)
		os.Exit(1)
	}

	ingester := locomo.NewIngester(svc, tenant)
	if !runSkipIngest {
		result, err := ingester.Ingest(ctx, dataset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error ingesting dataset: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("ingested %d conversations (%d memories) in %s\n",
			result.ConversationsIngested, result.TotalMemories, result.Duration)
	}

	retriever, err := locomo.NewRetriever(locomo.RetrievalStrategy(runStrategy), svc, tenant, ingester)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	evaluator := locomo.NewQAEvaluator(ingester, retriever, &locomo.EvaluationConfig{
		RetrievalStrategy: locomo.RetrievalStrategy(runStrategy),
		TopK:              runTopK,
		Category:          locomo.QuestionCategory(runCategory),
		Verbose:           runVerbose,
	})

	results, err := evaluator.Evaluate(ctx, dataset)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error evaluating: %v\n", err)
		os.Exit(1)
	}

	locomo.PrintResults(results)

	store := locomo.NewResultsStore(runResultsDir)
	path, err := store.Save(results)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to save results: %v\n", err)
		return
	}
	fmt.Printf("results saved to %s\n", path)
}
