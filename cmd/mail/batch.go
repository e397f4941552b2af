package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-mail-must-flow/internal/service"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [approve:<id> | reject:<id>]...",
		Short: "Apply several approve/reject decisions at once",
		Long: `Apply a list of decisions in one run. Each argument is action:record-id,
for example:

  mail batch approve:4f2a reject:9c81 approve:d07e

or read decisions from a file (or stdin with --file -), one per line:

  approve 4f2a
  reject 9c81

Decisions are applied independently: one failure never stops the others,
and the summary reports every item's outcome.`,
		RunE: runBatch,
	}

	cmd.Flags().String("file", "", "Read decisions from a file ('-' for stdin)")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	file, _ := cmd.Flags().GetString("file")
	decisions, err := collectDecisions(args, file)
	if err != nil {
		return err
	}

	eng, store, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	for i := range decisions {
		resolved, resolveErr := resolveRecordID(ctx, store, user, decisions[i].RecordID)
		if resolveErr != nil {
			return resolveErr
		}
		decisions[i].RecordID = resolved
	}

	result, err := eng.BatchDecide(ctx, user, decisions)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tACTION\tRESULT")
	for _, item := range result.Results {
		outcome := "ok"
		if !item.Success {
			outcome = item.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", shortID(item.RecordID), item.Action, outcome)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d decision(s): %d succeeded, %d failed.\n",
		result.Total, result.Successful, result.Failed)
	return nil
}

// collectDecisions merges argument and file decision sources.
func collectDecisions(args []string, file string) ([]service.Decision, error) {
	decisions := make([]service.Decision, 0, len(args))

	for _, arg := range args {
		decision, err := parseDecision(arg, ":")
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}

	if file != "" {
		fileDecisions, err := readDecisionFile(file)
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, fileDecisions...)
	}

	return decisions, nil
}

func readDecisionFile(path string) ([]service.Decision, error) {
	var reader *bufio.Scanner
	if path == "-" {
		reader = bufio.NewScanner(os.Stdin)
	} else {
		f, err := os.Open(path) // #nosec G304
		if err != nil {
			return nil, fmt.Errorf("failed to open decision file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = bufio.NewScanner(f)
	}

	var decisions []service.Decision
	for reader.Scan() {
		line := strings.TrimSpace(reader.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		decision, err := parseDecision(line, " ")
		if err != nil {
			return nil, err
		}
		decisions = append(decisions, decision)
	}
	return decisions, reader.Err()
}

// parseDecision splits "action<sep>record-id" into a decision.
func parseDecision(input, sep string) (service.Decision, error) {
	parts := strings.SplitN(input, sep, 2)
	if len(parts) != 2 || parts[0] == "" || strings.TrimSpace(parts[1]) == "" {
		return service.Decision{}, fmt.Errorf("invalid decision %q: expected action%srecord-id", input, sep)
	}

	action := service.DecisionAction(strings.ToLower(strings.TrimSpace(parts[0])))
	if action != service.ActionApprove && action != service.ActionReject {
		return service.Decision{}, fmt.Errorf("invalid decision %q: action must be approve or reject", input)
	}

	return service.Decision{
		RecordID: strings.TrimSpace(parts[1]),
		Action:   action,
	}, nil
}
