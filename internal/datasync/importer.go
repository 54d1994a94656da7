// Package datasync moves flashq data between the store and the outside:
// YAML seed files in, relational mirror snapshots out and back.
package datasync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/at-ishikawa/flashq/internal/day"
	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/schema"
)

var (
	ErrUnknownModel  = errors.New("datasync: unknown model")
	ErrFieldMismatch = errors.New("datasync: note fields do not match the model")
	ErrUnknownConf   = errors.New("datasync: unknown conf")
	ErrDeckName      = errors.New("datasync: invalid deck name")

	errDryRun = errors.New("dry run")
)

var seedCollections = []string{
	schema.CollConfs, schema.CollDecks, schema.CollModels, schema.CollNotes, schema.CollCards,
}

// ImportResult tracks counts for each import operation.
type ImportResult struct {
	ConfsNew      int
	ConfsSkipped  int
	ConfsUpdated  int
	DecksNew      int
	DecksSkipped  int
	ModelsNew     int
	ModelsSkipped int
	ModelsUpdated int
	NotesNew      int
	NotesSkipped  int
	CardsNew      int
}

// WriteSummary prints the result the way "flashq seed" reports it.
func (r *ImportResult) WriteSummary(w io.Writer, dryRun bool) {
	fmt.Fprintln(w, "\nImport Summary:")
	if dryRun {
		fmt.Fprintln(w, "  (dry-run mode, no changes made)")
	}
	fmt.Fprintf(w, "  Confs:   %d new, %d skipped, %d updated\n", r.ConfsNew, r.ConfsSkipped, r.ConfsUpdated)
	fmt.Fprintf(w, "  Decks:   %d new, %d skipped\n", r.DecksNew, r.DecksSkipped)
	fmt.Fprintf(w, "  Models:  %d new, %d skipped, %d updated\n", r.ModelsNew, r.ModelsSkipped, r.ModelsUpdated)
	fmt.Fprintf(w, "  Notes:   %d new, %d skipped\n", r.NotesNew, r.NotesSkipped)
	fmt.Fprintf(w, "  Cards:   %d new\n", r.CardsNew)
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun         bool
	UpdateExisting bool
}

// Importer writes seed documents into the store.
type Importer struct {
	store  *kvstore.Store
	writer io.Writer
}

// NewImporter creates a new Importer that reports each record to writer.
func NewImporter(store *kvstore.Store, writer io.Writer) *Importer {
	return &Importer{
		store:  store,
		writer: writer,
	}
}

type seedTx struct {
	confs  *kvstore.Collection[schema.Conf]
	decks  *kvstore.Collection[schema.Deck]
	models *kvstore.Collection[schema.Model]
	notes  *kvstore.Collection[schema.Note]
	cards  *kvstore.Collection[schema.Card]

	deckIDs  map[string]int64
	modelIDs map[string]int64
	now      int64
	intake   int64
}

// ImportSeed writes seed in a single transaction. A note whose first field
// already exists for the same model is skipped. Every new note gets one new
// card per template of its model.
func (imp *Importer) ImportSeed(ctx context.Context, seed Seed, now time.Time, opts ImportOptions) (*ImportResult, error) {
	var result ImportResult
	err := imp.store.Update(ctx, seedCollections, func(tx *kvstore.Tx) error {
		st, err := openSeedTx(tx, now)
		if err != nil {
			return err
		}
		for _, c := range seed.Confs {
			if err := imp.importConf(st, c, opts, &result); err != nil {
				return fmt.Errorf("importConf(%d) > %w", c.ID, err)
			}
		}
		for _, d := range seed.Decks {
			if err := imp.importDeck(st, d, &result); err != nil {
				return fmt.Errorf("importDeck(%s) > %w", d.Name, err)
			}
		}
		for _, m := range seed.Models {
			if err := imp.importModel(st, m, opts, &result); err != nil {
				return fmt.Errorf("importModel(%s) > %w", m.Name, err)
			}
		}
		for i, n := range seed.Notes {
			if err := imp.importNote(st, n, &result); err != nil {
				return fmt.Errorf("importNote(#%d) > %w", i+1, err)
			}
		}
		if opts.DryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}
	return &result, nil
}

func openSeedTx(tx *kvstore.Tx, now time.Time) (*seedTx, error) {
	st := &seedTx{
		deckIDs:  make(map[string]int64),
		modelIDs: make(map[string]int64),
		now:      day.Millis(now),
	}
	var err error
	if st.confs, err = kvstore.Use[schema.Conf](tx, schema.CollConfs); err != nil {
		return nil, err
	}
	if st.decks, err = kvstore.Use[schema.Deck](tx, schema.CollDecks); err != nil {
		return nil, err
	}
	if st.models, err = kvstore.Use[schema.Model](tx, schema.CollModels); err != nil {
		return nil, err
	}
	if st.notes, err = kvstore.Use[schema.Note](tx, schema.CollNotes); err != nil {
		return nil, err
	}
	if st.cards, err = kvstore.Use[schema.Card](tx, schema.CollCards); err != nil {
		return nil, err
	}

	if err := st.decks.OpenCursor(nil, kvstore.Next).Each(func(id int64, d schema.Deck) error {
		st.deckIDs[d.Name] = id
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scan decks: %w", err)
	}
	if err := st.models.OpenCursor(nil, kvstore.Next).Each(func(id int64, m schema.Model) error {
		st.modelIDs[m.Name] = id
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scan models: %w", err)
	}
	return st, nil
}

func (imp *Importer) importConf(st *seedTx, c SeedConf, opts ImportOptions, result *ImportResult) error {
	conf := c.conf()
	_, found, err := st.confs.Get(conf.ID)
	if err != nil {
		return err
	}
	if found && !opts.UpdateExisting {
		result.ConfsSkipped++
		fmt.Fprintf(imp.writer, "  [SKIP]  conf %d (%s)\n", conf.ID, conf.Name)
		return nil
	}
	if err := st.confs.Put(conf.ID, conf); err != nil {
		return err
	}
	if found {
		result.ConfsUpdated++
		fmt.Fprintf(imp.writer, "  [UPDATE]  conf %d (%s)\n", conf.ID, conf.Name)
		return nil
	}
	result.ConfsNew++
	fmt.Fprintf(imp.writer, "  [NEW]  conf %d (%s)\n", conf.ID, conf.Name)
	return nil
}

func (imp *Importer) importDeck(st *seedTx, d SeedDeck, result *ImportResult) error {
	name := strings.TrimSpace(d.Name)
	if _, ok := st.deckIDs[name]; ok {
		result.DecksSkipped++
		fmt.Fprintf(imp.writer, "  [SKIP]  deck %q\n", name)
		return nil
	}
	confID := d.ConfID
	if confID == 0 {
		confID = schema.DefaultConfID
	}
	if _, found, err := st.confs.Get(confID); err != nil {
		return err
	} else if !found {
		return fmt.Errorf("%w: %d", ErrUnknownConf, confID)
	}
	id, err := imp.ensureDeck(st, name, confID, result)
	if err != nil {
		return err
	}
	if d.NewLimit == nil && d.ReviewLimit == nil {
		return nil
	}
	deck, _, err := st.decks.Get(id)
	if err != nil {
		return err
	}
	deck.NewLimit = d.NewLimit
	deck.ReviewLimit = d.ReviewLimit
	return st.decks.Put(id, deck)
}

// ensureDeck returns the id of the deck called name, creating it and any
// missing parents on confID.
func (imp *Importer) ensureDeck(st *seedTx, name string, confID int64, result *ImportResult) (int64, error) {
	if id, ok := st.deckIDs[name]; ok {
		return id, nil
	}
	if !schema.ValidDeckName(name) {
		return 0, fmt.Errorf("%w: %q", ErrDeckName, name)
	}
	parts := strings.Split(name, schema.DeckSeparator)
	var id int64
	for i := range parts {
		path := strings.Join(parts[:i+1], schema.DeckSeparator)
		if existing, ok := st.deckIDs[path]; ok {
			id = existing
			continue
		}
		var err error
		id, err = st.decks.NextKey()
		if err != nil {
			return 0, fmt.Errorf("allocate deck id: %w", err)
		}
		if err := st.decks.Add(id, schema.Deck{ID: id, Name: path, ConfID: confID}); err != nil {
			return 0, err
		}
		st.deckIDs[path] = id
		result.DecksNew++
		fmt.Fprintf(imp.writer, "  [NEW]  deck %q\n", path)
	}
	return id, nil
}

func (imp *Importer) importModel(st *seedTx, m SeedModel, opts ImportOptions, result *ImportResult) error {
	id, found := st.modelIDs[m.Name]
	if found && !opts.UpdateExisting {
		result.ModelsSkipped++
		fmt.Fprintf(imp.writer, "  [SKIP]  model %q\n", m.Name)
		return nil
	}
	if !found {
		var err error
		if id, err = st.models.NextKey(); err != nil {
			return fmt.Errorf("allocate model id: %w", err)
		}
	}

	model := schema.Model{ID: id, Name: m.Name, Fields: m.Fields}
	for i, t := range m.Templates {
		model.Templates = append(model.Templates, schema.Template{
			ID:    int64(i),
			Name:  t.Name,
			Front: t.Front,
			Back:  t.Back,
		})
	}
	if err := st.models.Put(id, model); err != nil {
		return err
	}
	st.modelIDs[m.Name] = id
	if found {
		result.ModelsUpdated++
		fmt.Fprintf(imp.writer, "  [UPDATE]  model %q\n", m.Name)
		return nil
	}
	result.ModelsNew++
	fmt.Fprintf(imp.writer, "  [NEW]  model %q\n", m.Name)
	return nil
}

func (imp *Importer) importNote(st *seedTx, n SeedNote, result *ImportResult) error {
	modelID, ok := st.modelIDs[n.Model]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, n.Model)
	}
	model, _, err := st.models.Get(modelID)
	if err != nil {
		return err
	}
	if len(n.Fields) != len(model.Fields) {
		return fmt.Errorf("%w: %q has %d fields, got %d", ErrFieldMismatch, model.Name, len(model.Fields), len(n.Fields))
	}

	byModel, err := st.notes.Index(schema.NotesByModel)
	if err != nil {
		return err
	}
	siblings, err := byModel.GetAll(modelID)
	if err != nil {
		return fmt.Errorf("load notes of model %d: %w", modelID, err)
	}
	if slices.ContainsFunc(siblings, func(s schema.Note) bool { return s.Fields[0] == n.Fields[0] }) {
		result.NotesSkipped++
		fmt.Fprintf(imp.writer, "  [SKIP]  %q (%s)\n", n.Fields[0], model.Name)
		return nil
	}

	deckName := n.Deck
	if deckName == "" {
		deckName = schema.DefaultDeckName
	}
	deckID, err := imp.ensureDeck(st, deckName, schema.DefaultConfID, result)
	if err != nil {
		return err
	}

	noteID, err := st.notes.NextKey()
	if err != nil {
		return fmt.Errorf("allocate note id: %w", err)
	}
	note := schema.Note{
		ID:         noteID,
		ModelID:    modelID,
		Fields:     n.Fields,
		Tags:       n.Tags,
		Created:    st.now,
		LastEdited: st.now,
	}
	if err := st.notes.Add(noteID, note); err != nil {
		return err
	}

	for _, t := range model.Templates {
		cardID, err := st.cards.NextKey()
		if err != nil {
			return fmt.Errorf("allocate card id: %w", err)
		}
		card := schema.Card{
			ID:         cardID,
			DeckID:     deckID,
			NoteID:     noteID,
			TemplateID: t.ID,
			Created:    st.now,
			Queue:      schema.QueueNew,
			State:      schema.StateNew,
			Due:        st.now + st.intake,
		}
		st.intake++
		if err := st.cards.Add(cardID, card); err != nil {
			return err
		}
		result.CardsNew++
	}
	result.NotesNew++
	fmt.Fprintf(imp.writer, "  [NEW]  %q (%s)\n", n.Fields[0], model.Name)
	return nil
}
