package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemotree/mnemocore/internal/daemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Inspect or stop a background mnemod process started with \"serve --daemon\"",
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a background mnemod is running",
	Run: func(cmd *cobra.Command, args []string) {
		runDaemonStatus()
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a background mnemod",
	Run: func(cmd *cobra.Command, args []string) {
		runDaemonStop()
	},
}

func init() {
	daemonCmd.AddCommand(daemonStatusCmd, daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemonStatus() {
	status := daemon.New(daemonConfigDir(), Version).Status()
	if !status.Running {
		fmt.Println("not running")
		return
	}
	fmt.Printf("running (pid=%d, uptime=%s, rest=%v, mcp=%v)\n",
		status.PID, status.Uptime.Round(time.Second), status.RESTEnabled, status.MCPEnabled)
}

func runDaemonStop() {
	if err := daemon.New(daemonConfigDir(), Version).Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("stopped")
}
