// Package main provides the entry point for the idea evaluator CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "idea_agent",
	Short: "Idea evaluator CLI and HTTP API server",
	Long: "Idea evaluator scores innovation ideas on innovation, impact, alignment and feasibility " +
		"with four parallel model calls, and rewrites idea text with an enhancement assistant.",
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
