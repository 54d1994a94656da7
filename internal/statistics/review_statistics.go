// Package statistics summarises the review log per month.
package statistics

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

// ReviewStatistics holds statistics for a time period
type ReviewStatistics struct {
	Period         string // "2025-01"
	NewCardsCount  int    // Reviews of a card in the new state
	NewCardsUnique int    // Unique cards introduced
	ReviewsCount   int    // Every other review
	ReviewsUnique  int    // Unique cards reviewed
	LapsesCount    int    // "again" on a card in the review state
}

// AggregateStatistics holds totals across all periods with global unique counts
type AggregateStatistics struct {
	NewCardsCount  int
	NewCardsUnique int
	ReviewsCount   int
	ReviewsUnique  int
	LapsesCount    int
}

// StatisticsResult holds both per-period and aggregate statistics
type StatisticsResult struct {
	Periods   []ReviewStatistics
	Aggregate AggregateStatistics
}

type periodData struct {
	newCardsTotal  int
	newCardsUnique map[int64]struct{}
	reviewsTotal   int
	reviewsUnique  map[int64]struct{}
	lapsesTotal    int
}

// CalculateStatistics groups review logs by the month they happened in loc.
// year and month filter the periods (0 means no filter). Manual reschedules
// are not reviews and are ignored.
func CalculateStatistics(logs []schema.RevLog, loc *time.Location, year, month int) StatisticsResult {
	stats := make(map[string]*periodData)
	globalNewCards := make(map[int64]struct{})
	globalReviews := make(map[int64]struct{})

	for _, log := range logs {
		if log.Kind == schema.LogManual {
			continue
		}
		at := time.UnixMilli(log.Review).In(loc)
		if !matchesFilter(at.Year(), int(at.Month()), year, month) {
			continue
		}

		period := fmt.Sprintf("%d-%02d", at.Year(), int(at.Month()))
		ensurePeriodExists(stats, period)
		data := stats[period]

		if log.State == schema.StateNew {
			data.newCardsTotal++
			data.newCardsUnique[log.CardID] = struct{}{}
			globalNewCards[log.CardID] = struct{}{}
			continue
		}
		data.reviewsTotal++
		data.reviewsUnique[log.CardID] = struct{}{}
		globalReviews[log.CardID] = struct{}{}
		if log.State == schema.StateReview && log.Rating == schema.RatingAgain {
			data.lapsesTotal++
		}
	}

	return buildResult(stats, globalNewCards, globalReviews)
}

func ensurePeriodExists(stats map[string]*periodData, period string) {
	if stats[period] == nil {
		stats[period] = &periodData{
			newCardsUnique: make(map[int64]struct{}),
			reviewsUnique:  make(map[int64]struct{}),
		}
	}
}

func matchesFilter(logYear, logMonth, filterYear, filterMonth int) bool {
	if filterYear == 0 {
		return true
	}
	if logYear != filterYear {
		return false
	}
	if filterMonth == 0 {
		return true
	}
	return logMonth == filterMonth
}

func buildResult(stats map[string]*periodData, globalNewCards, globalReviews map[int64]struct{}) StatisticsResult {
	periods := make([]ReviewStatistics, 0, len(stats))

	var aggregate AggregateStatistics
	for period, data := range stats {
		periods = append(periods, ReviewStatistics{
			Period:         period,
			NewCardsCount:  data.newCardsTotal,
			NewCardsUnique: len(data.newCardsUnique),
			ReviewsCount:   data.reviewsTotal,
			ReviewsUnique:  len(data.reviewsUnique),
			LapsesCount:    data.lapsesTotal,
		})
		aggregate.NewCardsCount += data.newCardsTotal
		aggregate.ReviewsCount += data.reviewsTotal
		aggregate.LapsesCount += data.lapsesTotal
	}
	aggregate.NewCardsUnique = len(globalNewCards)
	aggregate.ReviewsUnique = len(globalReviews)

	// Sort by period descending (newest first)
	sort.Slice(periods, func(i, j int) bool {
		return periods[i].Period > periods[j].Period
	})

	return StatisticsResult{
		Periods:   periods,
		Aggregate: aggregate,
	}
}

// LoadLogs reads the review logs of every card in deckIDs, oldest first.
func LoadLogs(ctx context.Context, store *kvstore.Store, deckIDs []int64) ([]schema.RevLog, error) {
	var logs []schema.RevLog
	err := store.View(ctx, []string{schema.CollCards, schema.CollRevLog}, func(tx *kvstore.Tx) error {
		cards, err := kvstore.Use[schema.Card](tx, schema.CollCards)
		if err != nil {
			return err
		}
		byDeck, err := cards.Index(schema.CardsByDeck)
		if err != nil {
			return err
		}
		revLog, err := kvstore.Use[schema.RevLog](tx, schema.CollRevLog)
		if err != nil {
			return err
		}
		byCard, err := revLog.Index(schema.RevLogByCard)
		if err != nil {
			return err
		}

		for _, deckID := range deckIDs {
			cardIDs, err := byDeck.OpenCursor(kvstore.Only(deckID), kvstore.Next).Keys()
			if err != nil {
				return fmt.Errorf("list cards of deck %d: %w", deckID, err)
			}
			for _, cardID := range cardIDs {
				cardLogs, err := byCard.GetAll(cardID)
				if err != nil {
					return fmt.Errorf("load logs of card %d: %w", cardID, err)
				}
				logs = append(logs, cardLogs...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(logs, func(a, b schema.RevLog) int {
		return cmp.Or(cmp.Compare(a.Review, b.Review), cmp.Compare(a.ID, b.ID))
	})
	return logs, nil
}
