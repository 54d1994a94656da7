package scheduler

import (
	"fmt"
	"time"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/schema"
)

// Bucket is the study list a card belongs to at a given moment.
type Bucket int

const (
	BucketNew Bucket = iota
	BucketLearning
	BucketReview
	// BucketNone holds cards that are not eligible today.
	BucketNone
)

func (b Bucket) String() string {
	switch b {
	case BucketNew:
		return "new"
	case BucketLearning:
		return "learning"
	case BucketReview:
		return "review"
	case BucketNone:
		return "none"
	}
	return fmt.Sprintf("Bucket(%d)", int(b))
}

// Classify places card in a bucket for the logical day starting at today.
// The rules are checked in order:
//
//  1. day-learning cards touched today and suspended cards are not eligible
//  2. new cards are New
//  3. (re)learning cards with no day interval are Learning
//  4. cards due on or before today are Review
//  5. everything else is not eligible
func Classify(today time.Time, card schema.Card, dayStart int) Bucket {
	loc := today.Location()
	if card.Queue == schema.QueueSuspended {
		return BucketNone
	}
	if card.Queue == schema.QueueDayLearning && card.LastEdited != 0 &&
		day.StartOfDay(dayStart, day.FromMillis(card.LastEdited, loc)).Equal(today) {
		return BucketNone
	}
	if card.State == schema.StateNew {
		return BucketNew
	}
	if (card.State == schema.StateLearning || card.State == schema.StateRelearning) && card.ScheduledDays == 0 {
		return BucketLearning
	}
	if card.Due == 0 || !day.StartOfDay(dayStart, day.FromMillis(card.Due, loc)).After(today) {
		return BucketReview
	}
	return BucketNone
}
