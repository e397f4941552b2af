package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-mail-must-flow/internal/common"
	"github.com/Veraticus/the-mail-must-flow/internal/config"
	"github.com/Veraticus/the-mail-must-flow/internal/engine"
	"github.com/Veraticus/the-mail-must-flow/internal/gmail"
	"github.com/Veraticus/the-mail-must-flow/internal/llm"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
	"github.com/Veraticus/the-mail-must-flow/internal/pipeline"
	"github.com/Veraticus/the-mail-must-flow/internal/service"
	"github.com/Veraticus/the-mail-must-flow/internal/storage"
)

// initStorage initializes the storage service with proper path expansion.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDataPath()
	}
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// currentUser resolves the local user every command acts for.
func currentUser() (string, error) {
	user := viper.GetString("user")
	if user == "" {
		return "", fmt.Errorf("%w: no user configured; set --user or user in config", common.ErrMissingConfig)
	}
	return user, nil
}

// initProvider builds the Gmail provider from configuration.
func initProvider() (*gmail.Provider, error) {
	tokenDir := viper.GetString("gmail.token_dir")
	if tokenDir == "" {
		tokenDir = filepath.Join(config.DefaultConfigDir(), "tokens")
	}

	return gmail.NewProvider(gmail.Config{
		ClientID:     viper.GetString("gmail.client_id"),
		ClientSecret: viper.GetString("gmail.client_secret"),
		TokenDir:     config.ExpandPath(tokenDir),
	}, slog.Default())
}

// initEngine wires storage, the Gmail provider, and the analysis pipeline
// into a triage engine.
func initEngine(ctx context.Context) (*engine.TriageEngine, service.Storage, error) {
	store, err := initStorage(ctx)
	if err != nil {
		return nil, nil, err
	}

	provider, err := initProvider()
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	client, err := llm.NewClient(llm.Config{
		Provider:    viper.GetString("llm.provider"),
		APIKey:      viper.GetString("llm.api_key"),
		Model:       viper.GetString("llm.model"),
		MaxTokens:   viper.GetInt("llm.max_tokens"),
		Temperature: viper.GetFloat64("llm.temperature"),
		RateLimit:   viper.GetInt("llm.rate_limit"),
		CacheTTL:    viper.GetDuration("llm.cache_ttl"),
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	analyzer, err := pipeline.NewAnalyzer(client, slog.Default())
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	engineCfg := engine.DefaultConfig()
	if skip := viper.GetStringSlice("processing.skip_senders"); len(skip) > 0 {
		engineCfg.SkipSenders = skip
	}
	if limit := viper.GetInt("processing.fetch_limit"); limit > 0 {
		engineCfg.FetchLimit = limit
	}
	if timeout := viper.GetDuration("processing.send_timeout"); timeout > 0 {
		engineCfg.SendTimeout = timeout
	}

	eng := engine.NewWithConfig(store, provider, analyzer, slog.Default(), engineCfg)
	return eng, store, nil
}

// listEngine builds an engine over storage alone, for commands that never
// touch the mail provider or the pipeline (listing, rejecting, editing,
// retrying, stats).
func listEngine(store service.Storage) *engine.TriageEngine {
	return engine.New(store, nil, nil, slog.Default())
}

// resolveRecordID accepts a full record ID or a unique prefix of one,
// matched against records that can still be acted on. Unknown IDs pass
// through so the operation itself reports not-found.
func resolveRecordID(ctx context.Context, store service.Storage, userID, id string) (string, error) {
	if len(id) == 64 {
		return id, nil
	}

	var matches []string
	for _, status := range []model.Status{model.StatusPendingApproval, model.StatusFailedSend} {
		records, err := store.ListByStatus(ctx, userID, status)
		if err != nil {
			return "", err
		}
		for _, rec := range records {
			if strings.HasPrefix(rec.ID, id) {
				matches = append(matches, rec.ID)
			}
		}
	}

	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return id, nil
	default:
		return "", fmt.Errorf("%w: record ID prefix %q is ambiguous", common.ErrValidation, id)
	}
}

// shortID trims a record ID for table display.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
