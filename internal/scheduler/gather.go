package scheduler

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

var gatherCollections = []string{schema.CollCards, schema.CollDecks, schema.CollPrefs, schema.CollConfs}

// GatherInfo is the working set of one study session. It is mutated in place
// after each answer and only rebuilt when the logical day changes.
type GatherInfo struct {
	mu sync.Mutex

	New      []schema.Card
	Learning []schema.Card
	Review   []schema.Card

	NewToday      []int64
	ReviewToday   []int64
	NewStudied    int
	ReviewStudied int

	Limits Limits
	Conf   schema.Conf
	Prefs  schema.Prefs

	DayStart int
	Today    time.Time
}

// Counts summarises a GatherInfo for display.
type Counts struct {
	New           int
	Learning      int
	Review        int
	NewLeft       int
	ReviewLeft    int
	NewStudied    int
	ReviewStudied int
}

// Counts returns the bucket sizes and what is left for today.
func (g *GatherInfo) Counts() Counts {
	g.mu.Lock()
	defer g.mu.Unlock()
	q := g.quotaLocked()
	return Counts{
		New:           len(g.New),
		Learning:      len(g.Learning),
		Review:        len(g.Review),
		NewLeft:       q.newLeft,
		ReviewLeft:    q.reviewLeft,
		NewStudied:    g.NewStudied,
		ReviewStudied: g.ReviewStudied,
	}
}

// Empty reports whether no bucket has a card left.
func (g *GatherInfo) Empty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.New)+len(g.Learning)+len(g.Review) == 0
}

func (g *GatherInfo) list(b Bucket) *[]schema.Card {
	switch b {
	case BucketNew:
		return &g.New
	case BucketLearning:
		return &g.Learning
	case BucketReview:
		return &g.Review
	}
	return nil
}

// Gather reads the cards of deckIDs into a fresh GatherInfo. main selects
// the deck whose limits apply; nil uses the default conf. Gather never
// writes.
func (s *Scheduler) Gather(ctx context.Context, deckIDs []int64, main *int64, now time.Time) (*GatherInfo, error) {
	info := &GatherInfo{}
	if err := s.gather(ctx, info, deckIDs, main, now, true); err != nil {
		return nil, err
	}
	return info, nil
}

// Regather refreshes studied counts, limits, prefs and conf in info. The
// bucket lists are rebuilt only when the logical day advanced.
func (s *Scheduler) Regather(ctx context.Context, info *GatherInfo, deckIDs []int64, main *int64, now time.Time) error {
	return s.gather(ctx, info, deckIDs, main, now, false)
}

func (s *Scheduler) gather(ctx context.Context, info *GatherInfo, deckIDs []int64, main *int64, now time.Time, full bool) (err error) {
	txc, err := s.begin(ctx, kvstore.ReadOnly, now, gatherCollections...)
	if err != nil {
		return err
	}
	defer func() { err = txc.finish(err) }()
	return s.gatherTx(ctx, txc, info, deckIDs, main, full)
}

// gatherTx fills info from the snapshot of txc, which must cover
// gatherCollections.
func (s *Scheduler) gatherTx(ctx context.Context, txc *txContext, info *GatherInfo, deckIDs []int64, main *int64, full bool) error {
	info.mu.Lock()
	rebuild := full || info.Today.IsZero() || !info.Today.Equal(txc.today)
	info.mu.Unlock()

	var lists buckets
	var err error
	if rebuild {
		if lists, err = gatherBuckets(ctx, txc, deckIDs); err != nil {
			return err
		}
	}
	studied, err := gatherStudied(ctx, txc, deckIDs)
	if err != nil {
		return err
	}
	limits, conf, err := resolveLimits(txc, main)
	if err != nil {
		return err
	}

	info.mu.Lock()
	defer info.mu.Unlock()
	if rebuild {
		info.New, info.Learning, info.Review = lists.new, lists.learning, lists.review
		s.logger.Debug("gathered cards",
			"decks", len(deckIDs),
			"new", len(info.New),
			"learning", len(info.Learning),
			"review", len(info.Review),
		)
	}
	info.NewToday, info.ReviewToday = studied.newIDs, studied.reviewIDs
	info.NewStudied, info.ReviewStudied = len(studied.newIDs), studied.reviewCount
	info.Limits = limits
	info.Conf = conf
	info.Prefs = txc.prefs
	info.DayStart = txc.dayStart
	info.Today = txc.today
	return nil
}

type buckets struct {
	new      []schema.Card
	learning []schema.Card
	review   []schema.Card
}

// gatherBuckets classifies the cards of every deck, one goroutine per deck.
func gatherBuckets(ctx context.Context, txc *txContext, deckIDs []int64) (buckets, error) {
	cards, err := kvstore.Use[schema.Card](txc.tx, schema.CollCards)
	if err != nil {
		return buckets{}, err
	}
	byDeck, err := cards.Index(schema.CardsByDeck)
	if err != nil {
		return buckets{}, err
	}

	perDeck := make([]buckets, len(deckIDs))
	g, _ := errgroup.WithContext(ctx)
	for i, deckID := range deckIDs {
		g.Go(func() error {
			var b buckets
			err := byDeck.OpenCursor(kvstore.Only(deckID), kvstore.Next).Each(func(_ int64, c schema.Card) error {
				switch Classify(txc.today, c, txc.dayStart) {
				case BucketNew:
					b.new = append(b.new, c)
				case BucketLearning:
					b.learning = append(b.learning, c)
				case BucketReview:
					b.review = append(b.review, c)
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("gather cards of deck %d: %w", deckID, err)
			}
			perDeck[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return buckets{}, err
	}

	var out buckets
	for _, b := range perDeck {
		out.new = append(out.new, b.new...)
		out.learning = append(out.learning, b.learning...)
		out.review = append(out.review, b.review...)
	}
	sortByDue(out.new)
	return out, nil
}

type studied struct {
	newIDs      []int64
	reviewIDs   []int64
	reviewCount int
}

// gatherStudied sums the today counters of decks stamped with the current
// logical day. Stale decks count as zero.
func gatherStudied(ctx context.Context, txc *txContext, deckIDs []int64) (studied, error) {
	decks, err := kvstore.Use[schema.Deck](txc.tx, schema.CollDecks)
	if err != nil {
		return studied{}, err
	}

	perDeck := make([]studied, len(deckIDs))
	g, _ := errgroup.WithContext(ctx)
	for i, deckID := range deckIDs {
		g.Go(func() error {
			deck, found, err := decks.Get(deckID)
			if err != nil {
				return fmt.Errorf("load deck %d: %w", deckID, err)
			}
			if !found {
				return fmt.Errorf("%w: deck %d is missing", ErrIntegrity, deckID)
			}
			if deck.StampedOn(txc.todayMillis()) {
				perDeck[i] = studied{newIDs: deck.NewToday, reviewIDs: deck.ReviewToday, reviewCount: deck.ReviewCount}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return studied{}, err
	}

	var out studied
	for _, s := range perDeck {
		out.newIDs = append(out.newIDs, s.newIDs...)
		out.reviewIDs = append(out.reviewIDs, s.reviewIDs...)
		out.reviewCount += s.reviewCount
	}
	return out, nil
}

// sortByDue orders new cards by intake position.
func sortByDue(cards []schema.Card) {
	slices.SortStableFunc(cards, func(a, b schema.Card) int {
		if c := cmp.Compare(a.Due, b.Due); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
