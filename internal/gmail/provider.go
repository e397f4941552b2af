// Package gmail implements the mail provider against the Gmail API: fetching
// unread messages, sending threaded replies, and marking sources read. Each
// local user maps to one authorized Gmail account with its own token file.
package gmail

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/Veraticus/the-mail-must-flow/internal/common"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
	"github.com/Veraticus/the-mail-must-flow/internal/service"
)

// Config holds the Gmail provider configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	// TokenDir holds one token file per local user.
	TokenDir string
}

// Validate checks that the provider can authenticate.
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("%w: Gmail client ID and secret are required", common.ErrMissingConfig)
	}
	if c.TokenDir == "" {
		return fmt.Errorf("%w: Gmail token directory is required", common.ErrMissingConfig)
	}
	return nil
}

// Provider talks to the Gmail API on behalf of local users.
type Provider struct {
	config   Config
	logger   *slog.Logger
	services map[string]*gmailapi.Service
	mu       sync.Mutex
}

// NewProvider creates a Gmail provider. Per-user API services are built
// lazily on first use so that only users with saved tokens pay the auth cost.
func NewProvider(config Config, logger *slog.Logger) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		config:   config,
		logger:   logger,
		services: make(map[string]*gmailapi.Service),
	}, nil
}

// TokenFile returns the token path for a local user.
func (p *Provider) TokenFile(userID string) string {
	return filepath.Join(p.config.TokenDir, userID+".json")
}

// Authorize runs the interactive OAuth flow for a user and saves the token.
func (p *Provider) Authorize(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID cannot be empty", common.ErrValidation)
	}
	_, err := AuthenticateInteractive(ctx, OAuth2Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		TokenFile:    p.TokenFile(userID),
	})
	return err
}

// serviceFor returns the cached Gmail service for a user, building it from
// the saved token on first use.
func (p *Provider) serviceFor(ctx context.Context, userID string) (*gmailapi.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if svc, ok := p.services[userID]; ok {
		return svc, nil
	}

	oauthCfg := OAuth2Config{
		ClientID:     p.config.ClientID,
		ClientSecret: p.config.ClientSecret,
		TokenFile:    p.TokenFile(userID),
	}
	token, err := LoadToken(oauthCfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("%w: no Gmail token for user %s, run auth first", common.ErrMissingConfig, userID)
	}

	svc, err := gmailapi.NewService(ctx, option.WithTokenSource(
		oauth2.ReuseTokenSource(token, tokenSource(ctx, oauthCfg, token)),
	))
	if err != nil {
		return nil, fmt.Errorf("creating Gmail service for user %s: %w", userID, err)
	}

	p.services[userID] = svc
	return svc, nil
}

// FetchUnread lists the user's unread inbox messages, newest first as Gmail
// returns them, and resolves each to its full payload.
func (p *Provider) FetchUnread(ctx context.Context, userID string, max int) ([]model.RawMessage, error) {
	svc, err := p.serviceFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	list, err := svc.Users.Messages.List("me").
		Q("is:unread").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: listing unread messages: %v", common.ErrUpstream, err)
	}

	messages := make([]model.RawMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		full, err := svc.Users.Messages.Get("me", ref.Id).
			Format("full").
			Context(ctx).
			Do()
		if err != nil {
			p.logger.Warn("failed to fetch message details",
				"user_id", userID,
				"message_id", ref.Id,
				"error", err)
			continue
		}
		messages = append(messages, rawMessageFrom(full))
	}

	return messages, nil
}

// SendReply sends a multipart reply in the original thread and returns the
// Gmail message ID of the sent reply.
func (p *Provider) SendReply(ctx context.Context, userID string, reply service.Reply) (string, error) {
	svc, err := p.serviceFor(ctx, userID)
	if err != nil {
		return "", err
	}

	msg := &gmailapi.Message{
		Raw:      buildRawReply(reply),
		ThreadId: reply.ThreadID,
	}

	sent, err := svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: sending reply to %s: %v", common.ErrUpstream, reply.To, err)
	}

	p.logger.Info("reply sent", "user_id", userID, "to", reply.To, "gmail_id", sent.Id)
	return sent.Id, nil
}

// MarkRead removes the UNREAD label from the source message.
func (p *Provider) MarkRead(ctx context.Context, userID, providerMessageID string) error {
	svc, err := p.serviceFor(ctx, userID)
	if err != nil {
		return err
	}

	_, err = svc.Users.Messages.Modify("me", providerMessageID, &gmailapi.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: marking message %s read: %v", common.ErrUpstream, providerMessageID, err)
	}
	return nil
}
