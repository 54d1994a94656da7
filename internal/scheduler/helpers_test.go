package scheduler

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/fsrs"
	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
	"github.com/stretchr/testify/require"
)

var (
	testNow   = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	testToday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
)

func intPtr(v int) *int { return &v }

func testDefaults() Defaults {
	return Defaults{
		Conf: schema.Conf{
			ID: schema.DefaultConfID, Name: "Default",
			NewPerDay: 20, MaxInterval: 36500, Retention: 0.9,
		},
		Prefs: schema.Prefs{DayStart: 0, CollapseTime: 1200},
	}
}

func newTestStore(t *testing.T) *kvstore.Store {
	t.Helper()
	store, err := schema.Open(kvstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, Bootstrap(context.Background(), store, testDefaults()))
	return store
}

func newTestScheduler(t *testing.T, model fsrs.Model) (*Scheduler, *kvstore.Store) {
	t.Helper()
	store := newTestStore(t)
	if model == nil {
		model = fsrs.NewScheduler(fsrs.WithRand(rand.New(rand.NewPCG(1, 1))))
	}
	return New(store, model, WithRand(rand.New(rand.NewPCG(1, 1)))), store
}

// fixture writes records straight into the store.
type fixture struct {
	t      *testing.T
	cards  *kvstore.Collection[schema.Card]
	decks  *kvstore.Collection[schema.Deck]
	notes  *kvstore.Collection[schema.Note]
	models *kvstore.Collection[schema.Model]
	confs  *kvstore.Collection[schema.Conf]
}

func seed(t *testing.T, store *kvstore.Store, fn func(f *fixture)) {
	t.Helper()
	err := store.Update(context.Background(),
		[]string{schema.CollCards, schema.CollDecks, schema.CollNotes, schema.CollModels, schema.CollConfs},
		func(tx *kvstore.Tx) error {
			f := &fixture{t: t}
			var err error
			f.cards, err = kvstore.Use[schema.Card](tx, schema.CollCards)
			require.NoError(t, err)
			f.decks, err = kvstore.Use[schema.Deck](tx, schema.CollDecks)
			require.NoError(t, err)
			f.notes, err = kvstore.Use[schema.Note](tx, schema.CollNotes)
			require.NoError(t, err)
			f.models, err = kvstore.Use[schema.Model](tx, schema.CollModels)
			require.NoError(t, err)
			f.confs, err = kvstore.Use[schema.Conf](tx, schema.CollConfs)
			require.NoError(t, err)
			fn(f)
			return nil
		})
	require.NoError(t, err)
}

func (f *fixture) model() {
	require.NoError(f.t, f.models.Put(1, schema.Model{
		ID: 1, Name: "Basic", Fields: []string{"Front", "Back"},
		Templates: []schema.Template{{ID: 0, Name: "Card 1", Front: "{{Front}}", Back: "{{Back}}"}},
	}))
}

func (f *fixture) deck(d schema.Deck) {
	if d.ConfID == 0 {
		d.ConfID = schema.DefaultConfID
	}
	require.NoError(f.t, f.decks.Put(d.ID, d))
}

// card stores c with a note of its own.
func (f *fixture) card(c schema.Card) {
	if c.NoteID == 0 {
		c.NoteID = c.ID
	}
	if c.DeckID == 0 {
		c.DeckID = 1
	}
	require.NoError(f.t, f.notes.Put(c.NoteID, schema.Note{ID: c.NoteID, ModelID: 1, Fields: []string{"q", "a"}}))
	require.NoError(f.t, f.cards.Put(c.ID, c))
}

func newCard(id, due int64) schema.Card {
	return schema.Card{ID: id, Queue: schema.QueueNew, State: schema.StateNew, Due: due}
}

func learningCard(id int64, due time.Time) schema.Card {
	return schema.Card{
		ID: id, Queue: schema.QueueLearning, State: schema.StateLearning,
		Due: day.Millis(due), Stability: 1, Difficulty: 5, Reps: 1,
		LastReview: day.Millis(due.Add(-10 * time.Minute)),
	}
}

func reviewCard(id int64, due time.Time) schema.Card {
	return schema.Card{
		ID: id, Queue: schema.QueueReview, State: schema.StateReview,
		Due: day.Millis(due), ScheduledDays: 3, Stability: 4, Difficulty: 5, Reps: 3,
		LastReview: day.Millis(due.AddDate(0, 0, -3)),
	}
}

func cardIDs(cards []schema.Card) []int64 {
	out := make([]int64, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

// stubModel answers every rating with the card next returns.
type stubModel struct {
	next func(card schema.Card, now time.Time) schema.Card
}

func (m stubModel) NextStates(card schema.Card, _ schema.Conf, _ int, now time.Time, duration time.Duration) (map[schema.Rating]fsrs.Outcome, error) {
	out := make(map[schema.Rating]fsrs.Outcome, len(schema.Ratings))
	for _, r := range schema.Ratings {
		c := m.next(card, now)
		out[r] = fsrs.Outcome{Card: c, Log: schema.RevLog{
			ID: day.Millis(now), CardID: card.ID, Rating: r, State: card.State,
			Review: day.Millis(now), Duration: duration.Milliseconds(), Kind: schema.LogReview,
		}}
	}
	return out, nil
}
