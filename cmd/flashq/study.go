package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/flashq/internal/cli"
	"github.com/at-ishikawa/flashq/internal/statistics"
)

func newStudyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "study [deck]",
		Short: "Review the due cards of a deck and its subdecks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			name := a.deckName(args)
			ids, deck, err := a.scheduler.DeckTree(ctx, name)
			if err != nil {
				return fmt.Errorf("resolve deck %q: %w", name, err)
			}

			study, err := cli.NewStudyCLI(ctx, a.scheduler, deck.Name, ids, deck.ID,
				cmd.InOrStdin(), cmd.OutOrStdout(), time.Now)
			if err != nil {
				return err
			}
			if err := study.Run(ctx, study); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reviewed %d cards\n", study.Reviewed())
			return nil
		},
	}
}

func newStatsCommand() *cobra.Command {
	var (
		history bool
		year    int
		month   int
	)
	cmd := &cobra.Command{
		Use:   "stats [deck]",
		Short: "Show how many cards are due in a deck and its subdecks",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if month != 0 && year == 0 {
				return fmt.Errorf("--month requires --year")
			}
			if month < 0 || month > 12 {
				return fmt.Errorf("--month must be between 1 and 12, got %d", month)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			name := a.deckName(args)
			ids, deck, err := a.scheduler.DeckTree(ctx, name)
			if err != nil {
				return fmt.Errorf("resolve deck %q: %w", name, err)
			}
			now := time.Now()
			info, err := a.scheduler.Gather(ctx, ids, &deck.ID, now)
			if err != nil {
				return fmt.Errorf("gather %q: %w", name, err)
			}
			cli.WriteCounts(cmd.OutOrStdout(), deck.Name, info.Counts())
			if !history && year == 0 {
				return nil
			}

			logs, err := statistics.LoadLogs(ctx, a.store, ids)
			if err != nil {
				return fmt.Errorf("statistics.LoadLogs() > %w", err)
			}
			writeHistory(cmd.OutOrStdout(), statistics.CalculateStatistics(logs, now.Location(), year, month))
			return nil
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "Show the review history per month")
	cmd.Flags().IntVar(&year, "year", 0, "Only show the history of this year")
	cmd.Flags().IntVar(&month, "month", 0, "Only show the history of this month (requires --year)")
	return cmd
}

func writeHistory(w io.Writer, result statistics.StatisticsResult) {
	fmt.Fprintln(w)
	if len(result.Periods) == 0 {
		fmt.Fprintln(w, "No reviews found.")
		return
	}
	fmt.Fprintf(w, "%-8s %10s %10s %10s\n", "Period", "New", "Reviews", "Lapses")
	for _, p := range result.Periods {
		fmt.Fprintf(w, "%-8s %4d (%3d) %4d (%3d) %10d\n",
			p.Period, p.NewCardsCount, p.NewCardsUnique, p.ReviewsCount, p.ReviewsUnique, p.LapsesCount)
	}
	agg := result.Aggregate
	fmt.Fprintf(w, "%-8s %4d (%3d) %4d (%3d) %10d\n",
		"Total", agg.NewCardsCount, agg.NewCardsUnique, agg.ReviewsCount, agg.ReviewsUnique, agg.LapsesCount)
}
