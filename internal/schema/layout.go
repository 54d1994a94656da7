package schema

import (
	"github.com/at-ishikawa/flashq/internal/kvstore"
)

// Collection names.
const (
	CollCards  = "cards"
	CollDecks  = "decks"
	CollConfs  = "confs"
	CollPrefs  = "prefs"
	CollNotes  = "notes"
	CollModels = "models"
	CollRevLog = "rev_log"
)

// Index names.
const (
	CardsByDeck  = "by_deck"
	CardsByNote  = "by_note"
	DecksByConf  = "by_conf"
	NotesByModel = "by_model"
	RevLogByCard = "by_card"
)

// AllCollections lists every collection, in dependency order.
var AllCollections = []string{CollConfs, CollPrefs, CollDecks, CollModels, CollNotes, CollCards, CollRevLog}

// Layout returns the collections and indexes of a flashq store.
func Layout() *kvstore.Layout {
	return kvstore.NewLayout().
		Collection(CollCards,
			kvstore.IndexOn(CardsByDeck, func(c Card) (int64, bool) { return c.DeckID, true }),
			kvstore.IndexOn(CardsByNote, func(c Card) (int64, bool) { return c.NoteID, true }),
		).
		Collection(CollDecks,
			kvstore.IndexOn(DecksByConf, func(d Deck) (int64, bool) { return d.ConfID, true }),
		).
		Collection(CollConfs).
		Collection(CollPrefs).
		Collection(CollNotes,
			kvstore.IndexOn(NotesByModel, func(n Note) (int64, bool) { return n.ModelID, true }),
		).
		Collection(CollModels).
		Collection(CollRevLog,
			kvstore.IndexOn(RevLogByCard, func(r RevLog) (int64, bool) { return r.CardID, true }),
		)
}

// Open opens a store with the flashq layout and the validating codec.
func Open(cfg kvstore.Config) (*kvstore.Store, error) {
	return kvstore.Open(cfg, Layout(), kvstore.WithCodec(Codec{}))
}
