package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/at-ishikawa/flashq/internal/config"
	"github.com/at-ishikawa/flashq/internal/database"
	"github.com/at-ishikawa/flashq/internal/datasync"
	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/mirror"
)

type syncFunc func(ctx context.Context, store *kvstore.Store, client datasync.MirrorClient) (datasync.SyncResult, error)

func newMirrorCommand() *cobra.Command {
	mirrorCmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy the store to and from the relational mirror",
	}
	mirrorCmd.AddCommand(
		newMirrorSyncCommand("push", "Replace the mirror with the store's contents", datasync.Mirror),
		newMirrorSyncCommand("pull", "Replace the store with the mirror's contents", datasync.Restore),
		newMirrorClearCommand(),
	)
	return mirrorCmd
}

func newMirrorSyncCommand(use, short string, sync syncFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMirrorClient(cmd.Context(), func(ctx context.Context, a *app, client *mirror.Client) error {
				result, err := sync(ctx, a.store, client)
				if err != nil {
					return fmt.Errorf("mirror %s: %w", use, err)
				}
				writeSyncResult(cmd.OutOrStdout(), use, result)
				return nil
			})
		},
	}
}

func newMirrorClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every record from the mirror",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMirrorClient(cmd.Context(), func(ctx context.Context, _ *app, client *mirror.Client) error {
				if err := client.Reset(ctx); err != nil {
					return fmt.Errorf("mirror clear: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Mirror cleared")
				return nil
			})
		},
	}
}

func withMirrorClient(parent context.Context, fn func(ctx context.Context, a *app, client *mirror.Client) error) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	db, err := openMirrorDB(ctx, a.cfg.Mirror)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	worker := mirror.NewWorker(db, mirror.WithLogger(slog.Default()))
	if err := worker.Migrate(ctx); err != nil {
		return err
	}
	go func() { _ = worker.Run(ctx) }()

	return fn(ctx, a, mirror.NewClient(worker))
}

func openMirrorDB(ctx context.Context, cfg config.MirrorConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case database.DriverMySQL:
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open mysql mirror: %w", err)
		}
		return db, nil
	default:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath, uint(cfg.Retries))
		if err != nil {
			return nil, fmt.Errorf("open sqlite mirror: %w", err)
		}
		return db, nil
	}
}

func writeSyncResult(w io.Writer, use string, result datasync.SyncResult) {
	names := make([]string, 0, len(result))
	total := 0
	for name, n := range result {
		names = append(names, name)
		total += n
	}
	slices.Sort(names)

	fmt.Fprintf(w, "Mirror %s: %d rows\n", use, total)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %d\n", name+":", result[name])
	}
}
