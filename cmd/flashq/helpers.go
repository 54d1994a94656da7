package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/at-ishikawa/flashq/internal/config"
	"github.com/at-ishikawa/flashq/internal/fsrs"
	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/scheduler"
	"github.com/at-ishikawa/flashq/internal/schema"
)

func loadConfig() (*config.Config, error) {
	loader, err := config.NewConfigLoader(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create config loader: %w", err)
	}
	return loader.Load()
}

// app is an open store with its scheduler.
type app struct {
	cfg       *config.Config
	store     *kvstore.Store
	scheduler *scheduler.Scheduler
}

// openApp loads the config, opens the store and bootstraps it.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	kv := cfg.Store.KV()
	kv.Logger = slog.Default()
	store, err := schema.Open(kv)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defaults := scheduler.Defaults{
		Conf:  cfg.Scheduler.Conf(),
		Prefs: cfg.Scheduler.Prefs(),
	}
	if err := scheduler.Bootstrap(ctx, store, defaults); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("bootstrap store: %w", err)
	}

	return &app{
		cfg:       cfg,
		store:     store,
		scheduler: scheduler.New(store, fsrs.NewScheduler(), scheduler.WithLogger(slog.Default())),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// deckName returns args[0], or the configured default deck.
func (a *app) deckName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Study.DefaultDeck
}
