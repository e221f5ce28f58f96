package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions for a tenant (sqlite backend only)",
	Run: func(cmd *cobra.Command, args []string) {
		runSessions()
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions() {
	svc, _ := loadService()
	tenant := requireTenant()

	sessions, err := svc.ListSessions(context.Background(), tenant)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if len(sessions) == 0 {
		fmt.Println("no sessions recorded (the in-memory backend doesn't persist sessions)")
		return
	}
	for i, sess := range sessions {
		fmt.Printf("%d. %s (active=%v, created=%s)\n", i+1, sess.SessionID, sess.IsActive, sess.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}
