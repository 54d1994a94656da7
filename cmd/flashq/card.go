package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/flashq/internal/schema"
)

func newCardCommand() *cobra.Command {
	cardCmd := &cobra.Command{
		Use:   "card",
		Short: "Reschedule single cards",
	}
	cardCmd.AddCommand(
		newCardActionCommand("forget", "Reset a card to new", func(ctx context.Context, a *app, id int64, now time.Time) (schema.Card, error) {
			return a.scheduler.SaveForget(ctx, id, nil, now)
		}),
		newCardActionCommand("suspend", "Hide a card from study", func(ctx context.Context, a *app, id int64, now time.Time) (schema.Card, error) {
			return a.scheduler.SaveSuspend(ctx, id, true, nil, now)
		}),
		newCardActionCommand("unsuspend", "Return a suspended card to study", func(ctx context.Context, a *app, id int64, now time.Time) (schema.Card, error) {
			return a.scheduler.SaveSuspend(ctx, id, false, nil, now)
		}),
	)
	return cardCmd
}

type cardAction func(ctx context.Context, a *app, id int64, now time.Time) (schema.Card, error)

func newCardActionCommand(use, short string, action cardAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <card-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid card id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			card, err := action(ctx, a, id, time.Now())
			if err != nil {
				return fmt.Errorf("%s card %d: %w", use, id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Card %d is now %s (%s)\n", card.ID, card.Queue, card.State)
			return nil
		},
	}
}
