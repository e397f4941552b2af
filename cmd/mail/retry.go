package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry <record-id>",
		Short: "Return a failed send to the review queue",
		Long: `Move a message whose send failed back to pending so you can approve it
again (optionally after editing the response). Nothing is sent until you do.`,
		Args: cobra.ExactArgs(1),
		RunE: runRetry,
	}
}

func runRetry(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
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

	if err := listEngine(store).Retry(ctx, user, recordID); err != nil {
		return err
	}

	fmt.Printf("Record %s is pending again. Approve it to retry the send.\n", shortID(recordID))
	return nil
}
