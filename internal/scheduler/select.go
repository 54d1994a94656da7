package scheduler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/fsrs"
	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

// Selected is the card to show next with everything needed to render and
// answer it.
type Selected struct {
	Card     schema.Card
	Bucket   Bucket
	Index    int
	Deck     schema.Deck
	Conf     schema.Conf
	Note     schema.Note
	Model    schema.Model
	Template schema.Template
	// Preview holds the outcome of each rating, computed at selection time.
	Preview map[schema.Rating]fsrs.Outcome
}

var selectCollections = append(slices.Clone(gatherCollections), schema.CollNotes, schema.CollModels)

// Select picks the next card of deckIDs. It returns nil when every bucket is
// empty. Refreshing info, picking and resolving the card all read one
// snapshot; a picked card that changed in the store since it was gathered
// is reconciled into info and the pick is repeated.
func (s *Scheduler) Select(ctx context.Context, deckIDs []int64, main *int64, now time.Time, info *GatherInfo) (sel *Selected, err error) {
	txc, err := s.begin(ctx, kvstore.ReadOnly, now, selectCollections...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err = txc.finish(err); err != nil {
			sel = nil
		}
	}()

	if err := s.gatherTx(ctx, txc, info, deckIDs, main, false); err != nil {
		return nil, fmt.Errorf("regather: %w", err)
	}
	cards, err := kvstore.Use[schema.Card](txc.tx, schema.CollCards)
	if err != nil {
		return nil, err
	}

	for {
		info.mu.Lock()
		card, bucket, index, ok := s.pickLocked(info, now)
		info.mu.Unlock()
		if !ok {
			return nil, nil
		}

		stored, found, err := cards.Get(card.ID)
		if err != nil {
			return nil, fmt.Errorf("load card %d: %w", card.ID, err)
		}
		if !found {
			s.logger.Debug("selected card was deleted", "card", card.ID)
			info.mu.Lock()
			list := info.list(bucket)
			*list = removeID(*list, card.ID)
			info.mu.Unlock()
			continue
		}
		if stored != card {
			s.logger.Debug("selected card changed since gather", "card", card.ID)
			Reconcile(stored, bucket, index, info, now)
			continue
		}

		sel = &Selected{Card: stored, Bucket: bucket, Index: index}
		if err := resolve(txc, sel); err != nil {
			return nil, err
		}
		preview, err := s.model.NextStates(sel.Card, sel.Conf, txc.dayStart, now, 0)
		if err != nil {
			return nil, fmt.Errorf("preview card %d: %w", sel.Card.ID, err)
		}
		sel.Preview = preview
		return sel, nil
	}
}

// pickLocked applies the admission policy. New cards are tried first only
// when preferred, and are always the last resort otherwise.
func (s *Scheduler) pickLocked(info *GatherInfo, now time.Time) (schema.Card, Bucket, int, bool) {
	nowMs := day.Millis(now)
	collapse := day.Millis(now.Add(time.Duration(info.Prefs.CollapseTime) * time.Second))

	due := []func() (Bucket, int){
		func() (Bucket, int) { return BucketLearning, s.pickLearningBefore(info.Learning, nowMs) },
		func() (Bucket, int) { return BucketReview, s.pickAny(info.Review) },
		func() (Bucket, int) { return BucketLearning, s.pickLearningBefore(info.Learning, collapse) },
	}
	pickNew := func() (Bucket, int) { return BucketNew, s.pickNew(info.New, info.Conf.RandomNewOrder) }

	var order []func() (Bucket, int)
	if info.quotaLocked().preferNew() {
		order = append([]func() (Bucket, int){pickNew}, due...)
	} else {
		order = append(due, pickNew)
	}
	// Learning cards further ahead than the collapse window are shown
	// rather than ending the session while they wait.
	order = append(order, func() (Bucket, int) { return BucketLearning, earliest(info.Learning) })

	for _, pick := range order {
		bucket, i := pick()
		if i < 0 {
			continue
		}
		return (*info.list(bucket))[i], bucket, i, true
	}
	return schema.Card{}, BucketNone, -1, false
}

func (s *Scheduler) pickNew(cards []schema.Card, random bool) int {
	if len(cards) == 0 {
		return -1
	}
	if !random {
		return 0
	}
	return s.intn(len(cards))
}

// pickLearningBefore picks uniformly among learning cards due at or before cutoff.
func (s *Scheduler) pickLearningBefore(cards []schema.Card, cutoff int64) int {
	var candidates []int
	for i, c := range cards {
		if c.Due <= cutoff {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[s.intn(len(candidates))]
}

func (s *Scheduler) pickAny(cards []schema.Card) int {
	if len(cards) == 0 {
		return -1
	}
	return s.intn(len(cards))
}

func earliest(cards []schema.Card) int {
	best := -1
	for i, c := range cards {
		if best < 0 || c.Due < cards[best].Due {
			best = i
		}
	}
	return best
}

// resolve loads the deck, conf, note, model and template of the selected
// card. Any missing link is an integrity violation.
func resolve(txc *txContext, sel *Selected) (err error) {
	card := sel.Card
	if sel.Deck, err = loadDeck(txc.tx, card.DeckID); err != nil {
		return fmt.Errorf("card %d: %w", card.ID, err)
	}
	if sel.Conf, err = loadConf(txc.tx, sel.Deck.ConfID); err != nil {
		return fmt.Errorf("card %d: %w", card.ID, err)
	}

	notes, err := kvstore.Use[schema.Note](txc.tx, schema.CollNotes)
	if err != nil {
		return err
	}
	note, found, err := notes.Get(card.NoteID)
	if err != nil {
		return fmt.Errorf("load note %d: %w", card.NoteID, err)
	}
	if !found {
		return fmt.Errorf("%w: card %d references missing note %d", ErrIntegrity, card.ID, card.NoteID)
	}
	sel.Note = note

	models, err := kvstore.Use[schema.Model](txc.tx, schema.CollModels)
	if err != nil {
		return err
	}
	model, found, err := models.Get(note.ModelID)
	if err != nil {
		return fmt.Errorf("load model %d: %w", note.ModelID, err)
	}
	if !found {
		return fmt.Errorf("%w: note %d references missing model %d", ErrIntegrity, note.ID, note.ModelID)
	}
	sel.Model = model

	tmpl, ok := model.Template(card.TemplateID)
	if !ok {
		return fmt.Errorf("%w: card %d references missing template %d of model %d", ErrIntegrity, card.ID, card.TemplateID, model.ID)
	}
	sel.Template = tmpl
	return nil
}
