package scheduler

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

const DefaultDeckName = schema.DefaultDeckName

// Defaults seeds a fresh store.
type Defaults struct {
	Conf  schema.Conf
	Prefs schema.Prefs
}

// StandardDefaults returns the conf and prefs of a store nobody configured.
func StandardDefaults() Defaults {
	reviews := 200
	return Defaults{
		Conf: schema.Conf{
			ID:            schema.DefaultConfID,
			Name:          DefaultDeckName,
			NewPerDay:     20,
			ReviewsPerDay: &reviews,
			Fuzz:          true,
			MaxInterval:   36500,
			Retention:     0.9,
		},
		Prefs: schema.Prefs{DayStart: 4 * 60, CollapseTime: 20 * 60},
	}
}

// Bootstrap creates the default conf, the prefs row and the Default deck
// when they are missing. It is safe to run on every start.
func Bootstrap(ctx context.Context, store *kvstore.Store, defaults Defaults) error {
	return store.Update(ctx, []string{schema.CollConfs, schema.CollPrefs, schema.CollDecks}, func(tx *kvstore.Tx) error {
		confs, err := kvstore.Use[schema.Conf](tx, schema.CollConfs)
		if err != nil {
			return err
		}
		if _, found, err := confs.Get(schema.DefaultConfID); err != nil {
			return fmt.Errorf("load default conf: %w", err)
		} else if !found {
			conf := defaults.Conf
			conf.ID = schema.DefaultConfID
			if conf.Name == "" {
				conf.Name = DefaultDeckName
			}
			if err := confs.Put(conf.ID, conf); err != nil {
				return fmt.Errorf("create default conf: %w", err)
			}
		}

		prefs, err := kvstore.Use[schema.Prefs](tx, schema.CollPrefs)
		if err != nil {
			return err
		}
		if _, found, err := prefs.Get(schema.PrefsKey); err != nil {
			return fmt.Errorf("load prefs: %w", err)
		} else if !found {
			if err := prefs.Put(schema.PrefsKey, defaults.Prefs); err != nil {
				return fmt.Errorf("create prefs: %w", err)
			}
		}

		decks, err := kvstore.Use[schema.Deck](tx, schema.CollDecks)
		if err != nil {
			return err
		}
		n, err := decks.Count(nil)
		if err != nil {
			return fmt.Errorf("count decks: %w", err)
		}
		if n == 0 {
			deck := schema.Deck{ID: 1, Name: DefaultDeckName, ConfID: schema.DefaultConfID}
			if err := decks.Put(deck.ID, deck); err != nil {
				return fmt.Errorf("create default deck: %w", err)
			}
		}
		return nil
	})
}

// DeckTree resolves the deck called name and all of its descendants. The
// ids are sorted; main is the deck called name.
func (s *Scheduler) DeckTree(ctx context.Context, name string) (ids []int64, main schema.Deck, err error) {
	err = s.store.View(ctx, []string{schema.CollDecks}, func(tx *kvstore.Tx) error {
		decks, err := kvstore.Use[schema.Deck](tx, schema.CollDecks)
		if err != nil {
			return err
		}
		found := false
		err = decks.OpenCursor(nil, kvstore.Next).Each(func(id int64, d schema.Deck) error {
			switch {
			case d.Name == name:
				main, found = d, true
				ids = append(ids, id)
			case d.IsDescendantOf(name):
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan decks: %w", err)
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrDeckNotFound, name)
		}
		return nil
	})
	if err != nil {
		return nil, schema.Deck{}, err
	}
	slices.Sort(ids)
	return ids, main, nil
}

// Decks returns every deck ordered by name.
func (s *Scheduler) Decks(ctx context.Context) ([]schema.Deck, error) {
	var out []schema.Deck
	err := s.store.View(ctx, []string{schema.CollDecks}, func(tx *kvstore.Tx) error {
		decks, err := kvstore.Use[schema.Deck](tx, schema.CollDecks)
		if err != nil {
			return err
		}
		out, err = decks.OpenCursor(nil, kvstore.Next).GetAll()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	slices.SortFunc(out, func(a, b schema.Deck) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// AddDeck creates a deck and any missing parents, all on confID.
func (s *Scheduler) AddDeck(ctx context.Context, name string, confID int64) (schema.Deck, error) {
	name = strings.TrimSpace(name)
	if !schema.ValidDeckName(name) {
		return schema.Deck{}, fmt.Errorf("%w: %q", ErrDeckName, name)
	}
	var created schema.Deck
	err := s.store.Update(ctx, []string{schema.CollDecks, schema.CollConfs}, func(tx *kvstore.Tx) error {
		if _, err := loadConf(tx, confID); err != nil {
			return err
		}
		decks, err := kvstore.Use[schema.Deck](tx, schema.CollDecks)
		if err != nil {
			return err
		}
		existing := make(map[string]bool)
		if err := decks.OpenCursor(nil, kvstore.Next).Each(func(_ int64, d schema.Deck) error {
			existing[d.Name] = true
			return nil
		}); err != nil {
			return fmt.Errorf("scan decks: %w", err)
		}
		if existing[name] {
			return fmt.Errorf("%w: %q", ErrDeckExists, name)
		}

		parts := strings.Split(name, schema.DeckSeparator)
		for i := range parts {
			path := strings.Join(parts[:i+1], schema.DeckSeparator)
			if existing[path] {
				continue
			}
			id, err := decks.NextKey()
			if err != nil {
				return fmt.Errorf("allocate deck id: %w", err)
			}
			created = schema.Deck{ID: id, Name: path, ConfID: confID}
			if err := decks.Add(id, created); err != nil {
				return fmt.Errorf("create deck %q: %w", path, err)
			}
			existing[path] = true
		}
		return nil
	})
	if err != nil {
		return schema.Deck{}, err
	}
	return created, nil
}

// LimitKind selects which daily cap SetDeckLimit changes.
type LimitKind int

const (
	LimitNew LimitKind = iota
	LimitReview
)

// SetDeckLimit overrides a daily cap of a deck. todayOnly limits the override
// to the current logical day. A nil limit removes the override.
func (s *Scheduler) SetDeckLimit(ctx context.Context, deckID int64, kind LimitKind, limit *int, todayOnly bool, now time.Time) (err error) {
	txc, err := s.begin(ctx, kvstore.ReadWrite, now, schema.CollDecks, schema.CollPrefs)
	if err != nil {
		return err
	}
	defer func() { err = txc.finish(err) }()

	decks, err := kvstore.Use[schema.Deck](txc.tx, schema.CollDecks)
	if err != nil {
		return err
	}
	deck, found, err := decks.Get(deckID)
	if err != nil {
		return fmt.Errorf("load deck %d: %w", deckID, err)
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrDeckNotFound, deckID)
	}

	var target **int
	switch {
	case kind == LimitNew && todayOnly:
		deck.Restamp(txc.todayMillis())
		target = &deck.NewLimitToday
	case kind == LimitNew:
		target = &deck.NewLimit
	case todayOnly:
		deck.Restamp(txc.todayMillis())
		target = &deck.ReviewLimitToday
	default:
		target = &deck.ReviewLimit
	}
	*target = limit
	return decks.Put(deck.ID, deck)
}
