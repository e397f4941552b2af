package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access",
		Long: `Authorize this tool to read and reply to your Gmail.

This command will:
1. Start a local web server
2. Open Google's consent page in your browser
3. Save the resulting token for the configured user

Run it once per user before processing mail.`,
		RunE: runAuth,
	}

	return cmd
}

func runAuth(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	user, err := currentUser()
	if err != nil {
		return err
	}

	provider, err := initProvider()
	if err != nil {
		return err
	}

	if err := provider.Authorize(ctx, user); err != nil {
		return err
	}

	slog.Info("✅ Gmail authorized", "user", user, "token_file", provider.TokenFile(user))
	return nil
}
