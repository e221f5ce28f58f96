package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemotree/mnemocore/internal/daemon"
	"github.com/mnemotree/mnemocore/internal/mcpserver"
	"github.com/mnemotree/mnemocore/internal/restapi"
)

var (
	serveREST   bool
	serveMCP    bool
	serveDaemon bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API and/or the MCP stdio server",
	Long: `Starts the REST API, the MCP server, or both. With neither --rest nor
--mcp given, serve starts the REST API only. --daemon re-execs into the
background and returns immediately; check on it with "mnemod daemon
status" and stop it with "mnemod daemon stop".`,
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveREST, "rest", false, "run the REST API")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "run the MCP server over stdio")
	serveCmd.Flags().BoolVar(&serveDaemon, "daemon", false, "run in the background instead of the foreground")
	rootCmd.AddCommand(serveCmd)
}

func daemonConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".mnemocore")
}

func runServe() {
	if !serveREST && !serveMCP {
		serveREST = true
	}

	d := daemon.New(daemonConfigDir(), Version)

	if serveDaemon {
		args := make([]string, 0, len(os.Args)-1)
		for _, a := range os.Args[1:] {
			if a != "--daemon" {
				args = append(args, a)
			}
		}
		if err := d.Daemonize(args); err != nil {
			fmt.Fprintf(os.Stderr, "error starting daemon: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("mnemod started in the background; check with \"mnemod daemon status\"")
		return
	}

	svc, cfg := loadService()

	if err := d.Start(serveREST, cfg.RestAPI.Port, serveMCP); err != nil {
		fmt.Fprintf(os.Stderr, "error recording daemon state: %v\n", err)
		os.Exit(1)
	}
	defer d.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	errChan := make(chan error, 2)

	if serveREST {
		server := restapi.NewServer(svc, cfg)
		go func() {
			if err := server.StartWithContext(ctx, 10*time.Second); err != nil {
				errChan <- fmt.Errorf("rest api: %w", err)
			}
		}()
	}

	if serveMCP {
		go func() {
			if err := mcpserver.NewServer(svc).Run(ctx); err != nil && err != context.Canceled {
				errChan <- fmt.Errorf("mcp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errChan:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
