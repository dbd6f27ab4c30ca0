package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Inspect the prompt templates",
}

var promptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List template sets and keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, set := range catalog.Sets() {
			_, _ = fmt.Fprintf(out, "%s:\n", set)
			for _, key := range catalog.List(set) {
				origin := "built-in"
				if tmpl, err := catalog.Get(set, key); err == nil && !tmpl.Default {
					origin = "override"
				}
				_, _ = fmt.Fprintf(out, "  %-18s %s\n", key, origin)
			}
		}
		return nil
	},
}

var promptsShowCmd = &cobra.Command{
	Use:   "show <set> <key>",
	Short: "Print one template",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return err
		}
		catalog, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		tmpl, err := catalog.Get(args[0], args[1])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), tmpl.Text)
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsListCmd, promptsShowCmd)
	rootCmd.AddCommand(promptsCmd)
}
