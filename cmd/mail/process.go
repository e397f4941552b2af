package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-mail-must-flow/internal/service"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Fetch and analyze unread mail",
		Long: `Fetch unread messages, run each new one through the analysis pipeline,
and queue the results for your approval.

Messages you've already processed are skipped, as are automated senders
(no-reply addresses and the like). Run 'mail pending' afterwards to review
what arrived.`,
		RunE: runProcess,
	}

	return cmd
}

func runProcess(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Processing unread mail..."),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	summary, runErr := eng.ProcessNew(ctx, user)
	close(done)
	_ = bar.Finish()
	if runErr != nil {
		return runErr
	}

	printSummary(summary)
	return nil
}

func printSummary(summary *service.ProcessSummary) {
	slog.Info("✅ Processing complete",
		"fetched", summary.Fetched,
		"new_pending", summary.Pending,
		"already_known", summary.Skipped,
		"automated_senders", summary.SkippedSender)
}
