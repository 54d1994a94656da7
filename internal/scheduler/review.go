package scheduler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/at-ishikawa/flashq/internal/fsrs"
	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

var saveCollections = []string{schema.CollCards, schema.CollRevLog, schema.CollDecks, schema.CollPrefs}

// SaveReview records the answer to sel in one transaction: the updated card,
// its log row and the deck's today counters. info is reconciled once the
// transaction has committed.
func (s *Scheduler) SaveReview(ctx context.Context, sel *Selected, info *GatherInfo, now time.Time, rating schema.Rating, duration time.Duration) (schema.Card, error) {
	var updated schema.Card
	wasNew := false
	err := s.write(ctx, now, func(txc *txContext, w *writer) error {
		card, err := w.card(sel.Card.ID)
		if err != nil {
			return err
		}
		outcomes, err := s.model.NextStates(card, sel.Conf, txc.dayStart, now, duration)
		if err != nil {
			return fmt.Errorf("compute next state of card %d: %w", card.ID, err)
		}
		out, ok := outcomes[rating]
		if !ok {
			return fmt.Errorf("%w: %s", ErrInvalidRating, rating)
		}
		wasNew = card.State == schema.StateNew
		updated = out.Card
		if err := w.apply(out); err != nil {
			return err
		}
		return w.countStudied(txc, card, wasNew)
	})
	if err != nil {
		return schema.Card{}, err
	}

	info.mu.Lock()
	defer info.mu.Unlock()
	if wasNew {
		info.NewStudied++
		info.NewToday = append(info.NewToday, updated.ID)
	} else {
		info.ReviewStudied++
		if !slices.Contains(info.ReviewToday, updated.ID) {
			info.ReviewToday = append(info.ReviewToday, updated.ID)
		}
	}
	bucket := info.reconcileLocked(updated, sel.Bucket, sel.Index, now)
	s.logger.Debug("saved review", "card", updated.ID, "rating", rating.String(), "bucket", bucket.String())
	return updated, nil
}

// SaveForget resets a card to new and logs the reset.
func (s *Scheduler) SaveForget(ctx context.Context, cardID int64, info *GatherInfo, now time.Time) (schema.Card, error) {
	return s.saveManual(ctx, cardID, info, now, func(card schema.Card) (fsrs.Outcome, bool) {
		return fsrs.Forget(card, now), true
	})
}

// SaveSuspend suspends a card, or puts a suspended card back in the queue
// its state calls for.
func (s *Scheduler) SaveSuspend(ctx context.Context, cardID int64, suspended bool, info *GatherInfo, now time.Time) (schema.Card, error) {
	return s.saveManual(ctx, cardID, info, now, func(card schema.Card) (fsrs.Outcome, bool) {
		if suspended {
			card.Queue = schema.QueueSuspended
		} else if card.Queue == schema.QueueSuspended {
			card.Queue = fsrs.QueueFor(card.State, card.ScheduledDays)
		}
		card.LastEdited = now.UnixMilli()
		return fsrs.Outcome{Card: card}, false
	})
}

// saveManual writes the card change produced by change. withLog also adds
// the log row. info may be nil when no session is running.
func (s *Scheduler) saveManual(ctx context.Context, cardID int64, info *GatherInfo, now time.Time, change func(schema.Card) (fsrs.Outcome, bool)) (schema.Card, error) {
	var updated schema.Card
	err := s.write(ctx, now, func(_ *txContext, w *writer) error {
		card, err := w.card(cardID)
		if err != nil {
			return err
		}
		out, withLog := change(card)
		updated = out.Card
		if !withLog {
			return w.cards.Put(out.Card.ID, out.Card)
		}
		return w.apply(out)
	})
	if err != nil {
		return schema.Card{}, err
	}
	if info != nil {
		info.mu.Lock()
		defer info.mu.Unlock()
		previous, index := info.findLocked(cardID)
		info.reconcileLocked(updated, previous, index, now)
	}
	return updated, nil
}

// writer bundles the collections a save touches.
type writer struct {
	cards  *kvstore.Collection[schema.Card]
	revLog *kvstore.Collection[schema.RevLog]
	decks  *kvstore.Collection[schema.Deck]
}

func (s *Scheduler) write(ctx context.Context, now time.Time, fn func(*txContext, *writer) error) (err error) {
	txc, err := s.begin(ctx, kvstore.ReadWrite, now, saveCollections...)
	if err != nil {
		return err
	}
	defer func() { err = txc.finish(err) }()

	var w writer
	if w.cards, err = kvstore.Use[schema.Card](txc.tx, schema.CollCards); err != nil {
		return err
	}
	if w.revLog, err = kvstore.Use[schema.RevLog](txc.tx, schema.CollRevLog); err != nil {
		return err
	}
	if w.decks, err = kvstore.Use[schema.Deck](txc.tx, schema.CollDecks); err != nil {
		return err
	}
	return fn(txc, &w)
}

func (w *writer) card(id int64) (schema.Card, error) {
	card, found, err := w.cards.Get(id)
	if err != nil {
		return schema.Card{}, fmt.Errorf("load card %d: %w", id, err)
	}
	if !found {
		return schema.Card{}, fmt.Errorf("%w: %d", ErrCardNotFound, id)
	}
	return card, nil
}

// apply stores the outcome card and its log row. Log ids are review times;
// a clash moves the row to the next free key.
func (w *writer) apply(out fsrs.Outcome) error {
	if err := w.cards.Put(out.Card.ID, out.Card); err != nil {
		return fmt.Errorf("save card %d: %w", out.Card.ID, err)
	}
	log := out.Log
	_, taken, err := w.revLog.Get(log.ID)
	if err != nil {
		return fmt.Errorf("load log %d: %w", log.ID, err)
	}
	if taken {
		if log.ID, err = w.revLog.NextKey(); err != nil {
			return fmt.Errorf("allocate log id: %w", err)
		}
	}
	if err := w.revLog.Add(log.ID, log); err != nil {
		return fmt.Errorf("save log of card %d: %w", out.Card.ID, err)
	}
	return nil
}

// countStudied bumps the today counters of the card's deck, restamping a
// deck last used on another day.
func (w *writer) countStudied(txc *txContext, card schema.Card, wasNew bool) error {
	deck, found, err := w.decks.Get(card.DeckID)
	if err != nil {
		return fmt.Errorf("load deck %d: %w", card.DeckID, err)
	}
	if !found {
		return fmt.Errorf("%w: card %d references missing deck %d", ErrIntegrity, card.ID, card.DeckID)
	}
	deck.Restamp(txc.todayMillis())
	if wasNew {
		deck.NewToday = append(deck.NewToday, card.ID)
	} else {
		if !slices.Contains(deck.ReviewToday, card.ID) {
			deck.ReviewToday = append(deck.ReviewToday, card.ID)
		}
		deck.ReviewCount++
	}
	if err := w.decks.Put(deck.ID, deck); err != nil {
		return fmt.Errorf("save deck %d: %w", deck.ID, err)
	}
	return nil
}
