package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mnemotree/mnemocore/internal/memindex"
	"github.com/mnemotree/mnemocore/internal/mnemo"
	"github.com/mnemotree/mnemocore/internal/retrieval"
	"github.com/mnemotree/mnemocore/internal/types"
)

var (
	rememberImportance float64
	rememberTags       []string
	rememberType       string

	recallLimit int

	updateContent    string
	updateImportance float64

	listLimit int

	forgetPermanent bool
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a memory",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRemember(strings.Join(args, " "))
	},
}

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Retrieve memories relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runRecall(strings.Join(args, " "))
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a memory by ID",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runGet(args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's memories",
	Run: func(cmd *cobra.Command, args []string) {
		runList()
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a memory's content or importance",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runUpdate(args[0])
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runForget(args[0])
	},
}

func init() {
	rememberCmd.Flags().Float64VarP(&rememberImportance, "importance", "i", 0.5, "importance (0-1)")
	rememberCmd.Flags().StringSliceVarP(&rememberTags, "tags", "t", nil, "tags (comma-separated)")
	rememberCmd.Flags().StringVar(&rememberType, "type", "episodic", "memory type (episodic, semantic, procedural, fact)")

	recallCmd.Flags().IntVarP(&recallLimit, "limit", "l", 10, "maximum results")

	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 50, "maximum results")

	updateCmd.Flags().StringVar(&updateContent, "content", "", "new content")
	updateCmd.Flags().Float64VarP(&updateImportance, "importance", "i", 0, "new importance (0-1)")

	forgetCmd.Flags().BoolVar(&forgetPermanent, "permanent", false, "purge from sparse index and dedup table immediately")

	rootCmd.AddCommand(rememberCmd, recallCmd, getCmd, listCmd, updateCmd, forgetCmd)
}

func runRemember(content string) {
	svc, _ := loadService()
	tenant := requireTenant()

	res, err := svc.Store(context.Background(), mnemo.StoreInput{
		TenantID:   tenant,
		Content:    content,
		Type:       types.MemoryType(rememberType),
		Importance: rememberImportance,
		Tags:       rememberTags,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error storing memory: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("stored memory %s (action=%s)\n", res.ID, res.Action)
}

func runRecall(query string) {
	svc, _ := loadService()
	tenant := requireTenant()

	results, err := svc.Recall(context.Background(), tenant, query, retrieval.Options{Limit: recallLimit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error recalling memories: %v\n", err)
		os.Exit(1)
	}
	if len(results) == 0 {
		fmt.Println("no matching memories")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%s] (score=%.3f) %s\n", i+1, r.Memory.ID, r.Final, r.Memory.Content)
	}
}

func runGet(id string) {
	svc, _ := loadService()
	tenant := requireTenant()

	m, err := svc.Get(context.Background(), tenant, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("id: %s\ncontent: %s\ntype: %s\nimportance: %.2f\ntags: %s\naccess_count: %d\ncreated: %s\n",
		m.ID, m.Content, m.Type, m.Importance, strings.Join(m.Topics, ", "), m.AccessCount, m.CreatedAt.Format("2006-01-02 15:04:05"))
}

func runList() {
	svc, _ := loadService()
	tenant := requireTenant()

	res, err := svc.GetAll(context.Background(), tenant, memindex.Filter{}, listLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%d memories (showing %d)\n\n", res.Total, res.Returned)
	for i, m := range res.Items {
		fmt.Printf("%d. [%s] %s\n", i+1, m.ID, m.Content)
	}
}

func runUpdate(id string) {
	svc, _ := loadService()
	tenant := requireTenant()

	if err := svc.Update(context.Background(), mnemo.UpdateInput{
		TenantID:   tenant,
		ID:         id,
		Content:    updateContent,
		Importance: updateImportance,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error updating memory: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("memory updated")
}

func runForget(id string) {
	svc, _ := loadService()
	tenant := requireTenant()

	if err := svc.Delete(context.Background(), tenant, id, forgetPermanent); err != nil {
		fmt.Fprintf(os.Stderr, "error deleting memory: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("memory deleted")
}
