package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <record-id>",
		Short: "Replace the drafted reply for a pending message",
		Long: `Save your own response text for a message awaiting review.

The record stays pending; your edit replaces the draft when you later
approve. Provide the text with --text, from a file with --file, or on
stdin when neither flag is set.`,
		Args: cobra.ExactArgs(1),
		RunE: runEdit,
	}

	cmd.Flags().String("text", "", "The replacement response text")
	cmd.Flags().String("file", "", "Read the replacement text from a file")

	return cmd
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	text, err := editText(cmd)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recordID, err := resolveRecordID(ctx, store, user, args[0])
	if err != nil {
		return err
	}

	if err := listEngine(store).SaveEdit(ctx, user, recordID, text); err != nil {
		return err
	}

	fmt.Printf("Saved edit for %s. It will be used when you approve.\n", shortID(recordID))
	return nil
}

func editText(cmd *cobra.Command) (string, error) {
	text, _ := cmd.Flags().GetString("text")
	file, _ := cmd.Flags().GetString("file")

	switch {
	case text != "" && file != "":
		return "", fmt.Errorf("use either --text or --file, not both")
	case text != "":
		return text, nil
	case file != "":
		data, err := os.ReadFile(file) // #nosec G304
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
}
