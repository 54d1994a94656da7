// Package scheduler decides which card a learner sees next and records the
// outcome of each review.
//
// A study session gathers the eligible cards of a deck tree once, then keeps
// that GatherInfo current after every answer without re-reading the store,
// until the logical day rolls over.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/fsrs"
	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

var (
	// ErrIntegrity reports a reference to a record that must exist but does not.
	ErrIntegrity     = errors.New("scheduler: integrity violation")
	ErrDeckNotFound  = errors.New("scheduler: deck not found")
	ErrDeckExists    = errors.New("scheduler: deck already exists")
	ErrDeckName      = errors.New("scheduler: invalid deck name")
	ErrCardNotFound  = errors.New("scheduler: card not found")
	ErrInvalidRating = errors.New("scheduler: rating has no outcome")
)

// Scheduler runs gathers, selections and saves against one store.
type Scheduler struct {
	store  *kvstore.Store
	model  fsrs.Model
	logger *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithRand fixes the random source used to pick cards.
func WithRand(rng *rand.Rand) Option {
	return func(s *Scheduler) { s.rng = rng }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New returns a Scheduler over store that asks model for next states.
func New(store *kvstore.Store, model fsrs.Model, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  store,
		model:  model,
		logger: slog.Default(),
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.IntN(n)
}

// txContext carries what every read inside one transaction must agree on.
// The day start is read once when the transaction begins.
type txContext struct {
	tx       *kvstore.Tx
	prefs    schema.Prefs
	dayStart int
	now      time.Time
	today    time.Time
}

func (t *txContext) todayMillis() int64 {
	return day.Millis(t.today)
}

// begin opens a transaction and resolves today from the stored prefs.
// collections must include prefs.
func (s *Scheduler) begin(ctx context.Context, mode kvstore.Mode, now time.Time, collections ...string) (*txContext, error) {
	tx, err := s.store.Begin(ctx, mode, collections...)
	if err != nil {
		return nil, fmt.Errorf("begin %s transaction: %w", mode, err)
	}
	prefs, err := loadPrefs(tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &txContext{
		tx:       tx,
		prefs:    prefs,
		dayStart: prefs.DayStart,
		now:      now,
		today:    day.StartOfDay(prefs.DayStart, now),
	}, nil
}

// finish commits on success and rolls back otherwise.
func (t *txContext) finish(err error) error {
	if err != nil {
		_ = t.tx.Rollback()
		return err
	}
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// loadPrefs returns the stored prefs, or the zero prefs when the row is missing.
func loadPrefs(tx *kvstore.Tx) (schema.Prefs, error) {
	prefs, err := kvstore.Use[schema.Prefs](tx, schema.CollPrefs)
	if err != nil {
		return schema.Prefs{}, err
	}
	p, _, err := prefs.Get(schema.PrefsKey)
	if err != nil {
		return schema.Prefs{}, fmt.Errorf("load prefs: %w", err)
	}
	return p, nil
}

func loadConf(tx *kvstore.Tx, id int64) (schema.Conf, error) {
	confs, err := kvstore.Use[schema.Conf](tx, schema.CollConfs)
	if err != nil {
		return schema.Conf{}, err
	}
	conf, found, err := confs.Get(id)
	if err != nil {
		return schema.Conf{}, fmt.Errorf("load conf %d: %w", id, err)
	}
	if !found {
		if id == schema.DefaultConfID {
			return schema.Conf{}, fmt.Errorf("%w: default conf is missing", ErrIntegrity)
		}
		return schema.Conf{}, fmt.Errorf("%w: conf %d is missing", ErrIntegrity, id)
	}
	return conf, nil
}

func loadDeck(tx *kvstore.Tx, id int64) (schema.Deck, error) {
	decks, err := kvstore.Use[schema.Deck](tx, schema.CollDecks)
	if err != nil {
		return schema.Deck{}, err
	}
	deck, found, err := decks.Get(id)
	if err != nil {
		return schema.Deck{}, fmt.Errorf("load deck %d: %w", id, err)
	}
	if !found {
		return schema.Deck{}, fmt.Errorf("%w: deck %d is missing", ErrIntegrity, id)
	}
	return deck, nil
}
