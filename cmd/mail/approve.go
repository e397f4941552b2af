package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func approveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve <record-id>",
		Short: "Approve a pending message and send the reply",
		Long: `Approve a message awaiting review and send its reply.

The text sent is, in order of precedence: the --text override if given,
your saved edit if you made one, otherwise the drafted reply. The send
happens exactly once; approving an already-decided record is an error.`,
		Args: cobra.ExactArgs(1),
		RunE: runApprove,
	}

	cmd.Flags().String("text", "", "Replace the response text for this send only")

	return cmd
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	override, _ := cmd.Flags().GetString("text")

	user, err := currentUser()
	if err != nil {
		return err
	}

	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recordID, err := resolveRecordID(ctx, store, user, args[0])
	if err != nil {
		return err
	}

	outcome, err := eng.Approve(ctx, user, recordID, override)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Reply sent (receipt %s)\n\n%s\n", outcome.ReceiptID, outcome.Text)
	return nil
}
