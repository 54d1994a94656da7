package scheduler

import (
	"time"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/schema"
)

// Reconcile moves card from the bucket it was selected from into the bucket
// it belongs to now. index is where the card sat in the previous bucket;
// a stale hint falls back to a scan by id. It returns the new bucket.
func Reconcile(card schema.Card, previous Bucket, index int, info *GatherInfo, now time.Time) Bucket {
	info.mu.Lock()
	defer info.mu.Unlock()
	return info.reconcileLocked(card, previous, index, now)
}

func (g *GatherInfo) reconcileLocked(card schema.Card, previous Bucket, index int, now time.Time) Bucket {
	if list := g.list(previous); list != nil {
		if index >= 0 && index < len(*list) && (*list)[index].ID == card.ID {
			*list = append((*list)[:index], (*list)[index+1:]...)
		} else {
			*list = removeID(*list, card.ID)
		}
	}

	next := Classify(day.StartOfDay(g.DayStart, now), card, g.DayStart)
	list := g.list(next)
	if list == nil {
		return next
	}
	*list = append(removeID(*list, card.ID), card)
	if next == BucketNew {
		sortByDue(*list)
	}
	return next
}

// findLocked returns where the card with id sits, or BucketNone.
func (g *GatherInfo) findLocked(id int64) (Bucket, int) {
	for _, b := range []Bucket{BucketNew, BucketLearning, BucketReview} {
		for i, c := range *g.list(b) {
			if c.ID == id {
				return b, i
			}
		}
	}
	return BucketNone, -1
}

func removeID(cards []schema.Card, id int64) []schema.Card {
	out := cards[:0]
	for _, c := range cards {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
