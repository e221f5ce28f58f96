package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mnemod version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mnemod", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
