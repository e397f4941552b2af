package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show processing statistics",
		Long: `Show aggregate statistics for the configured user: totals by status and
category, today's volume, and the size of the review queue. Everything is
computed from the stored records at read time.`,
		RunE: runStats,
	}
}

func runStats(cmd *cobra.Command, _ []string) error {
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

	stats, err := listEngine(store).Stats(ctx, user)
	if err != nil {
		return err
	}

	fmt.Printf("📊 Statistics for %s\n\n", user)
	fmt.Printf("Total processed:   %d\n", stats.TotalProcessed)
	fmt.Printf("Processed today:   %d\n", stats.ProcessedToday)
	fmt.Printf("Awaiting review:   %d\n\n", stats.PendingApprovals)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, status := range sortedStatusKeys(stats.ByStatus) {
		fmt.Fprintf(w, "%s\t%d\n", status, stats.ByStatus[status])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(stats.ByCategory) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tCOUNT")
		for _, category := range sortedCategoryKeys(stats.ByCategory) {
			fmt.Fprintf(w, "%s\t%d\n", category, stats.ByCategory[category])
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	return nil
}

func sortedStatusKeys(m map[model.Status]int) []model.Status {
	keys := make([]model.Status, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedCategoryKeys(m map[model.Category]int) []model.Category {
	keys := make([]model.Category, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
