// Command revenant runs the agent gateway and administers its memory store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped by the build.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "revenant",
	Short: "Local agent gateway with persistent vector memory",
	Long: `Revenant serves an LLM-backed agent over HTTP and websocket, enriches
every query with semantically similar past interactions, and exposes
sandboxed workspace tools.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("revenant %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config YAML (default: built-in defaults + env)")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(memoryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
