package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Select(t *testing.T) {
	main := int64(1)

	tests := []struct {
		name       string
		seed       func(f *fixture)
		wantBucket Bucket
		wantCard   int64
		wantNil    bool
	}{
		{
			name: "fresh day ties towards new",
			seed: func(f *fixture) {
				f.card(newCard(1, 3))
				f.card(newCard(2, 1))
				f.card(newCard(3, 2))
				f.card(learningCard(4, testNow.Add(-time.Minute)))
				f.card(learningCard(5, testNow))
				for id := int64(6); id <= 10; id++ {
					f.card(reviewCard(id, testNow.AddDate(0, 0, -1)))
				}
			},
			wantBucket: BucketNew,
			wantCard:   2,
		},
		{
			name:    "nothing eligible",
			seed:    func(f *fixture) {},
			wantNil: true,
		},
		{
			name: "new cap used up sends learning first",
			seed: func(f *fixture) {
				f.deck(schema.Deck{ID: 1, Name: "Default", Today: day.Millis(testToday), NewLimitToday: intPtr(0)})
				f.card(newCard(1, 1))
				f.card(learningCard(2, testNow.Add(-time.Minute)))
			},
			wantBucket: BucketLearning,
			wantCard:   2,
		},
		{
			name: "learning inside the collapse window comes before new",
			seed: func(f *fixture) {
				f.deck(schema.Deck{ID: 1, Name: "Default", Today: day.Millis(testToday), NewLimitToday: intPtr(0)})
				f.card(newCard(1, 1))
				f.card(learningCard(2, testNow.Add(10*time.Minute)))
			},
			wantBucket: BucketLearning,
			wantCard:   2,
		},
		{
			name: "new is the last resort beyond the cap",
			seed: func(f *fixture) {
				f.deck(schema.Deck{ID: 1, Name: "Default", Today: day.Millis(testToday), NewLimitToday: intPtr(0)})
				f.card(newCard(1, 1))
			},
			wantBucket: BucketNew,
			wantCard:   1,
		},
		{
			name: "learning card beyond the collapse window is shown rather than nothing",
			seed: func(f *fixture) {
				f.card(learningCard(1, testNow.Add(2*time.Hour)))
			},
			wantBucket: BucketLearning,
			wantCard:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := newTestScheduler(t, nil)
			seed(t, store, func(f *fixture) {
				f.model()
				tt.seed(f)
			})
			info, err := s.Gather(context.Background(), []int64{1}, &main, testNow)
			require.NoError(t, err)

			got, err := s.Select(context.Background(), []int64{1}, &main, testNow, info)
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantBucket, got.Bucket)
			assert.Equal(t, tt.wantCard, got.Card.ID)
			assert.Equal(t, got.Card.ID, (*info.list(got.Bucket))[got.Index].ID)
			assert.Equal(t, "Basic", got.Model.Name)
			assert.Equal(t, "Card 1", got.Template.Name)
			assert.Len(t, got.Preview, 4)
		})
	}
}

func TestScheduler_SelectRandomNewOrder(t *testing.T) {
	ctx := context.Background()
	s, store := newTestScheduler(t, nil)
	seed(t, store, func(f *fixture) {
		f.model()
		require.NoError(t, f.confs.Put(1, schema.Conf{
			ID: 1, Name: "Default", NewPerDay: 100, RandomNewOrder: true, MaxInterval: 100, Retention: 0.9,
		}))
		for id := int64(1); id <= 20; id++ {
			f.card(newCard(id, id))
		}
	})

	info, err := s.Gather(ctx, []int64{1}, nil, testNow)
	require.NoError(t, err)

	seen := make(map[int64]bool)
	for i := 0; i < 30; i++ {
		got, err := s.Select(ctx, []int64{1}, nil, testNow, info)
		require.NoError(t, err)
		require.NotNil(t, got)
		seen[got.Card.ID] = true
	}
	assert.Greater(t, len(seen), 1, "random order should not always pick the first card")
}

func TestScheduler_SelectIntegrity(t *testing.T) {
	tests := []struct {
		name string
		seed func(f *fixture)
	}{
		{
			name: "missing note",
			seed: func(f *fixture) {
				f.model()
				require.NoError(t, f.cards.Put(1, schema.Card{ID: 1, DeckID: 1, NoteID: 42, Queue: schema.QueueNew, State: schema.StateNew}))
			},
		},
		{
			name: "missing model",
			seed: func(f *fixture) {
				f.card(newCard(1, 1))
			},
		},
		{
			name: "missing template",
			seed: func(f *fixture) {
				f.model()
				c := newCard(1, 1)
				c.TemplateID = 5
				f.card(c)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := newTestScheduler(t, nil)
			seed(t, store, tt.seed)
			info, err := s.Gather(context.Background(), []int64{1}, nil, testNow)
			require.NoError(t, err)

			_, err = s.Select(context.Background(), []int64{1}, nil, testNow, info)
			assert.ErrorIs(t, err, ErrIntegrity)
		})
	}
}

func TestScheduler_SelectReadsStoredCard(t *testing.T) {
	ctx := context.Background()
	var previewed []schema.Card
	model := stubModel{next: func(card schema.Card, now time.Time) schema.Card {
		previewed = append(previewed, card)
		return card
	}}
	s, store := newTestScheduler(t, model)
	seed(t, store, func(f *fixture) {
		f.model()
		f.card(reviewCard(1, testNow.AddDate(0, 0, -1)))
	})
	info, err := s.Gather(ctx, []int64{1}, nil, testNow)
	require.NoError(t, err)

	updated := reviewCard(1, testNow.AddDate(0, 0, -1))
	updated.Stability = 9
	updated.Reps = 7
	seed(t, store, func(f *fixture) {
		require.NoError(t, f.cards.Put(1, updated))
	})

	got, err := s.Select(ctx, []int64{1}, nil, testNow, info)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, updated, got.Card)
	require.NotEmpty(t, previewed)
	for _, c := range previewed {
		assert.Equal(t, updated, c)
	}
	assert.Equal(t, updated, info.Review[got.Index])
}

func TestScheduler_SelectSkipsCardsChangedSinceGather(t *testing.T) {
	tests := []struct {
		name   string
		change func(f *fixture)
	}{
		{
			name: "suspended",
			change: func(f *fixture) {
				c := newCard(1, 1)
				c.DeckID, c.NoteID = 1, 1
				c.Queue = schema.QueueSuspended
				require.NoError(f.t, f.cards.Put(1, c))
			},
		},
		{
			name: "deleted",
			change: func(f *fixture) {
				require.NoError(f.t, f.cards.Delete(1))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, store := newTestScheduler(t, nil)
			seed(t, store, func(f *fixture) {
				f.model()
				f.card(newCard(1, 1))
				f.card(newCard(2, 2))
			})
			info, err := s.Gather(ctx, []int64{1}, nil, testNow)
			require.NoError(t, err)
			require.Equal(t, []int64{1, 2}, cardIDs(info.New))

			seed(t, store, tt.change)

			got, err := s.Select(ctx, []int64{1}, nil, testNow, info)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, int64(2), got.Card.ID)
			assert.Equal(t, []int64{2}, cardIDs(info.New))
		})
	}
}
