package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/idea-evaluator/internal/server"
)

var (
	servePort        int
	serveDatabaseURL string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the enhancement and evaluation endpoints.
Evaluations are recorded when a database URL is configured.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080, or PORT)")
	serveCmd.Flags().StringVar(&serveDatabaseURL, "db-url", "", "Database URL (overrides DATABASE_URL)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, catalog, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	port := servePort
	if port == 0 {
		port = cfg.Port
	}
	if port == 0 {
		port = 8080
	}
	databaseURL := serveDatabaseURL
	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL
	}

	srv, err := server.New(server.Config{
		Port:        port,
		DatabaseURL: databaseURL,
		Model:       cfg.LLMConfig().Model,
		CallTimeout: cfg.CallTimeout(),
		Completer:   client,
		Catalog:     catalog,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}
