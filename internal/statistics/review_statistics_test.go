package statistics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

func mustParseDate(t *testing.T, s string) int64 {
	t.Helper()
	at, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return at.UnixMilli()
}

func reviewLog(t *testing.T, id, cardID int64, date string, state schema.State, rating schema.Rating) schema.RevLog {
	return schema.RevLog{
		ID:     id,
		CardID: cardID,
		Review: mustParseDate(t, date),
		State:  state,
		Rating: rating,
		Kind:   schema.LogReview,
	}
}

func TestCalculateStatistics(t *testing.T) {
	logs := []schema.RevLog{
		reviewLog(t, 1, 10, "2025-01-05", schema.StateNew, schema.RatingGood),
		reviewLog(t, 2, 10, "2025-01-06", schema.StateLearning, schema.RatingGood),
		reviewLog(t, 3, 11, "2025-01-06", schema.StateNew, schema.RatingEasy),
		reviewLog(t, 4, 10, "2025-02-10", schema.StateReview, schema.RatingAgain),
		reviewLog(t, 5, 10, "2025-02-10", schema.StateRelearning, schema.RatingGood),
		reviewLog(t, 6, 11, "2025-02-15", schema.StateReview, schema.RatingGood),
		reviewLog(t, 7, 12, "2024-12-31", schema.StateNew, schema.RatingHard),
		{ID: 8, CardID: 11, Review: mustParseDate(t, "2025-02-20"), Rating: schema.RatingManual, Kind: schema.LogManual},
	}

	tests := []struct {
		name              string
		year              int
		month             int
		expectedPeriods   []ReviewStatistics
		expectedAggregate AggregateStatistics
	}{
		{
			name: "all periods",
			expectedPeriods: []ReviewStatistics{
				{Period: "2025-02", ReviewsCount: 3, ReviewsUnique: 2, LapsesCount: 1},
				{Period: "2025-01", NewCardsCount: 2, NewCardsUnique: 2, ReviewsCount: 1, ReviewsUnique: 1},
				{Period: "2024-12", NewCardsCount: 1, NewCardsUnique: 1},
			},
			expectedAggregate: AggregateStatistics{
				NewCardsCount:  3,
				NewCardsUnique: 3,
				ReviewsCount:   4,
				ReviewsUnique:  2,
				LapsesCount:    1,
			},
		},
		{
			name: "filter by year",
			year: 2024,
			expectedPeriods: []ReviewStatistics{
				{Period: "2024-12", NewCardsCount: 1, NewCardsUnique: 1},
			},
			expectedAggregate: AggregateStatistics{NewCardsCount: 1, NewCardsUnique: 1},
		},
		{
			name:  "filter by year and month",
			year:  2025,
			month: 1,
			expectedPeriods: []ReviewStatistics{
				{Period: "2025-01", NewCardsCount: 2, NewCardsUnique: 2, ReviewsCount: 1, ReviewsUnique: 1},
			},
			expectedAggregate: AggregateStatistics{
				NewCardsCount:  2,
				NewCardsUnique: 2,
				ReviewsCount:   1,
				ReviewsUnique:  1,
			},
		},
		{
			name:            "no match",
			year:            2030,
			expectedPeriods: []ReviewStatistics{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateStatistics(logs, time.UTC, tt.year, tt.month)
			assert.Equal(t, tt.expectedPeriods, got.Periods)
			assert.Equal(t, tt.expectedAggregate, got.Aggregate)
		})
	}
}

func TestCalculateStatistics_Location(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	logs := []schema.RevLog{
		{ID: 1, CardID: 1, Review: time.Date(2025, 1, 31, 20, 0, 0, 0, time.UTC).UnixMilli(), Kind: schema.LogReview},
	}

	assert.Equal(t, "2025-01", CalculateStatistics(logs, time.UTC, 0, 0).Periods[0].Period)
	assert.Equal(t, "2025-02", CalculateStatistics(logs, tokyo, 0, 0).Periods[0].Period)
}

func TestLoadLogs(t *testing.T) {
	ctx := context.Background()
	store, err := schema.Open(kvstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Update(ctx, []string{schema.CollCards, schema.CollRevLog}, func(tx *kvstore.Tx) error {
		cards, err := kvstore.Use[schema.Card](tx, schema.CollCards)
		if err != nil {
			return err
		}
		for _, c := range []schema.Card{
			{ID: 1, DeckID: 100, NoteID: 1},
			{ID: 2, DeckID: 200, NoteID: 1},
			{ID: 3, DeckID: 300, NoteID: 2},
		} {
			if err := cards.Put(c.ID, c); err != nil {
				return err
			}
		}
		revLog, err := kvstore.Use[schema.RevLog](tx, schema.CollRevLog)
		if err != nil {
			return err
		}
		for _, l := range []schema.RevLog{
			reviewLog(t, 1, 2, "2025-01-03", schema.StateNew, schema.RatingGood),
			reviewLog(t, 2, 1, "2025-01-04", schema.StateNew, schema.RatingGood),
			reviewLog(t, 3, 3, "2025-01-01", schema.StateNew, schema.RatingGood),
			reviewLog(t, 4, 1, "2025-01-02", schema.StateNew, schema.RatingGood),
		} {
			if err := revLog.Put(l.ID, l); err != nil {
				return err
			}
		}
		return nil
	}))

	logs, err := LoadLogs(ctx, store, []int64{100, 200})
	require.NoError(t, err)

	var ids []int64
	for _, l := range logs {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []int64{4, 1, 2}, ids)

	logs, err = LoadLogs(ctx, store, []int64{999})
	require.NoError(t, err)
	assert.Empty(t, logs)
}
