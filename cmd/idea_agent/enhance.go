package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/idea-evaluator/internal/enhance"
	"github.com/jonathan/idea-evaluator/internal/observability"
	"github.com/jonathan/idea-evaluator/internal/types"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance [message]",
	Short: "Rewrite and critique a piece of idea text",
	Long: "Send a message to the enhancement assistant and print the rewritten text and its " +
		"evaluation. The message is taken from the argument, --in, or stdin.",
	Args: cobra.MaximumNArgs(1),
	RunE: runEnhance,
}

var (
	enhanceInputFile  string
	enhanceType       string
	enhanceDepartment string
	enhanceJSON       bool
)

func init() {
	enhanceCmd.Flags().StringVarP(&enhanceInputFile, "in", "i", "", "Read the message from a file (- for stdin)")
	enhanceCmd.Flags().StringVarP(&enhanceType, "type", "t", string(types.RequestKindGeneral), "Request type: general or idea_enhancement")
	enhanceCmd.Flags().StringVarP(&enhanceDepartment, "department", "d", "", "Department the idea belongs to")
	enhanceCmd.Flags().BoolVar(&enhanceJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(enhanceCmd)
}

func runEnhance(cmd *cobra.Command, args []string) error {
	message, err := readMessage(cmd, args, enhanceInputFile)
	if err != nil {
		return err
	}

	_, catalog, client, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	req := types.EnhanceRequest{
		Message: message,
		Type:    types.RequestKind(enhanceType),
	}
	if enhanceDepartment != "" {
		req.Context.IdeaMetadata = &types.IdeaMetadata{Department: enhanceDepartment}
	}

	record, err := enhance.NewService(client, catalog).Enhance(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if enhanceJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}
	observability.NewPrinter(out).PrintEnhancement(record)
	return nil
}

// readMessage takes the positional argument, else the --in file, else stdin
func readMessage(cmd *cobra.Command, args []string, inputFile string) (string, error) {
	var message string
	switch {
	case len(args) == 1 && inputFile != "":
		return "", fmt.Errorf("cannot use a message argument with --in")
	case len(args) == 1:
		message = args[0]
	case inputFile != "" && inputFile != "-":
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		message = string(data)
	default:
		data, err := readAll(cmd)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		message = string(data)
	}

	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("message is empty")
	}
	return message, nil
}
