package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func rejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <record-id>",
		Short: "Decline a pending message without replying",
		Args:  cobra.ExactArgs(1),
		RunE:  runReject,
	}
}

func runReject(cmd *cobra.Command, args []string) error {
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

	if err := listEngine(store).Reject(ctx, user, recordID); err != nil {
		return err
	}

	fmt.Printf("Rejected %s. No reply will be sent.\n", shortID(recordID))
	return nil
}
