package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/at-ishikawa/flashq/internal/scheduler"
	"github.com/at-ishikawa/flashq/internal/schema"
)

type SortFlag string

// Set implements pflag.Value.
func (s *SortFlag) Set(v string) error {
	switch v {
	case string(SortDescending):
		*s = SortDescending
	case string(SortAscending):
		*s = SortAscending
	default:
		return fmt.Errorf("invalid value %q, valid values are %q or %q", v, SortDescending, SortAscending)
	}
	return nil
}

// String implements pflag.Value.
func (s *SortFlag) String() string {
	if s == nil {
		return ""
	}
	return string(*s)
}

// Type implements pflag.Value.
func (s *SortFlag) Type() string {
	return "SortFlag"
}

var (
	_ pflag.Value = (*SortFlag)(nil)
)

const (
	SortDescending SortFlag = "desc"
	SortAscending  SortFlag = "asc"
)

func newDeckCommand() *cobra.Command {
	deckCmd := &cobra.Command{
		Use:   "deck",
		Short: "Manage decks",
	}
	deckCmd.AddCommand(
		newDeckListCommand(),
		newDeckAddCommand(),
		newDeckLimitCommand(),
	)
	return deckCmd
}

func newDeckListCommand() *cobra.Command {
	sortFlag := SortAscending
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every deck",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			decks, err := a.scheduler.Decks(ctx)
			if err != nil {
				return err
			}
			slices.SortFunc(decks, func(a, b schema.Deck) int {
				if sortFlag == SortDescending {
					return strings.Compare(b.Name, a.Name)
				}
				return strings.Compare(a.Name, b.Name)
			})
			writeDecks(cmd.OutOrStdout(), decks)
			return nil
		},
	}
	cmd.Flags().Var(&sortFlag, "sort", "Sort order of deck names. Options: asc, desc")
	return cmd
}

func writeDecks(w io.Writer, decks []schema.Deck) {
	fmt.Fprintf(w, "%-4s %-40s %-5s %s\n", "ID", "NAME", "CONF", "LIMITS")
	for _, d := range decks {
		fmt.Fprintf(w, "%-4d %-40s %-5d new=%s review=%s\n",
			d.ID, d.Name, d.ConfID, formatLimit(d.NewLimit), formatLimit(d.ReviewLimit))
	}
}

func formatLimit(limit *int) string {
	if limit == nil {
		return "-"
	}
	return fmt.Sprint(*limit)
}

func newDeckAddCommand() *cobra.Command {
	var confID int64
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a deck and any missing parent decks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			deck, err := a.scheduler.AddDeck(ctx, args[0], confID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created deck %q (id %d)\n", deck.Name, deck.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&confID, "conf", schema.DefaultConfID, "Conf id the new decks use")
	return cmd
}

func newDeckLimitCommand() *cobra.Command {
	var (
		newLimit    int
		reviewLimit int
		todayOnly   bool
		reset       bool
	)
	cmd := &cobra.Command{
		Use:   "limit <name>",
		Short: "Override the daily new or review cap of a deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newSet := cmd.Flags().Changed("new")
			reviewSet := cmd.Flags().Changed("review")
			if !newSet && !reviewSet {
				return fmt.Errorf("one of --new or --review is required")
			}

			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			_, deck, err := a.scheduler.DeckTree(ctx, args[0])
			if err != nil {
				return err
			}
			now := time.Now()
			set := func(kind scheduler.LimitKind, value int) error {
				var limit *int
				if !reset {
					limit = &value
				}
				return a.scheduler.SetDeckLimit(ctx, deck.ID, kind, limit, todayOnly, now)
			}
			if newSet {
				if err := set(scheduler.LimitNew, newLimit); err != nil {
					return fmt.Errorf("set new limit: %w", err)
				}
			}
			if reviewSet {
				if err := set(scheduler.LimitReview, reviewLimit); err != nil {
					return fmt.Errorf("set review limit: %w", err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated limits of %q\n", deck.Name)
			return nil
		},
	}
	cmd.Flags().IntVar(&newLimit, "new", 0, "New cards per day")
	cmd.Flags().IntVar(&reviewLimit, "review", 0, "Reviews per day")
	cmd.Flags().BoolVar(&todayOnly, "today", false, "Only override today's cap")
	cmd.Flags().BoolVar(&reset, "clear", false, "Remove the override instead of setting it")
	return cmd
}
