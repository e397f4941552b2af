package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func pendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List messages awaiting your decision",
		RunE:  runPending,
	}

	cmd.Flags().Bool("full", false, "Show full record IDs and draft text")

	return cmd
}

func runPending(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	full, _ := cmd.Flags().GetBool("full")

	user, err := currentUser()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := listEngine(store).Pending(ctx, user)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No messages awaiting review.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPRIORITY\tCATEGORY\tSENTIMENT\tCONF\tFROM\tSUBJECT")
	for _, rec := range records {
		id := rec.ID
		if !full {
			id = shortID(id)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%.2f\t%s\t%s\n",
			id, rec.Priority, rec.Category, rec.Sentiment, rec.Confidence,
			rec.Sender, rec.Subject)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if full {
		for _, rec := range records {
			fmt.Printf("\n--- %s ---\n%s\n", rec.ID, rec.ResponseText())
		}
	}

	fmt.Printf("\n%d message(s) awaiting review. Use 'mail approve <id>' or 'mail reject <id>'.\n", len(records))
	return nil
}
