package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mnemotree/mnemocore/internal/locomo"
)

var (
	reportResultsDir string
	reportLatest     bool
	reportCSV        bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "List or print saved benchmark runs",
	Run: func(cmd *cobra.Command, args []string) {
		runReport()
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportResultsDir, "results-dir", "./benchmark-results", "directory saved results were written under")
	reportCmd.Flags().BoolVar(&reportLatest, "latest", false, "print the full Markdown report for the most recent run")
	reportCmd.Flags().BoolVar(&reportCSV, "csv", false, "with --latest, print per-question CSV instead of Markdown")
	rootCmd.AddCommand(reportCmd)
}

func runReport() {
	store := locomo.NewResultsStore(reportResultsDir)

	if reportLatest {
		results, err := store.GetLatest()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if reportCSV {
			fmt.Print(locomo.ExportCSV(results))
		} else {
			locomo.PrintResults(results)
		}
		return
	}

	summaries, err := store.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(summaries) == 0 {
		fmt.Println("no benchmark results found; run \"mnemobench run\" first")
		return
	}

	fmt.Printf("%-24s %-10s %6s %10s\n", "TIMESTAMP", "STRATEGY", "F1", "QUESTIONS")
	for _, s := range summaries {
		fmt.Printf("%-24s %-10s %6.2f %10d\n", s.Timestamp.Format("2006-01-02 15:04:05"), s.Strategy, s.F1, s.Questions)
	}
}
