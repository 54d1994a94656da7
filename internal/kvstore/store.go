// Package kvstore is a typed, transactional view over an ordered key-value
// store (badger).
//
// Records live in named collections keyed by int64. A collection may carry
// secondary indexes whose values are int64 as well. Every read and write
// happens inside a Tx that declares up front which collections it touches.
//
// Key layout:
//
//	<collection>\x00p\x00<key>              -> encoded record
//	<collection>\x00i\x00<index>\x00<ikey><key> -> empty
//
// Keys are 8-byte big-endian with the sign bit flipped, so byte order and
// numeric order agree and range scans are plain badger seeks.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrUnknownCollection = errors.New("kvstore: unknown collection")
	ErrUnknownIndex      = errors.New("kvstore: unknown index")
	ErrNotInScope        = errors.New("kvstore: collection not declared by the transaction")
	ErrTxFinished        = errors.New("kvstore: transaction already finished")
	ErrReadOnly          = errors.New("kvstore: write in a read-only transaction")
	ErrKeyExists         = errors.New("kvstore: key already exists")
	ErrCursorBusy        = errors.New("kvstore: another cursor is active in this read-write transaction")
	ErrCursorOpen        = errors.New("kvstore: transaction finished while a cursor is still open")
	ErrAborted           = errors.New("kvstore: transaction aborted")
)

// Mode selects between read-only and read-write transactions.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	if m == ReadWrite {
		return "readwrite"
	}
	return "readonly"
}

// Codec turns records into stored bytes and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec stores records as JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// IndexSpec declares a secondary index. KeyOf receives the record passed to
// Put; returning false leaves the record out of the index.
type IndexSpec struct {
	Name  string
	KeyOf func(v any) (int64, bool)
}

// IndexOn builds an IndexSpec for records of type T.
func IndexOn[T any](name string, keyOf func(T) (int64, bool)) IndexSpec {
	return IndexSpec{
		Name: name,
		KeyOf: func(v any) (int64, bool) {
			switch rec := v.(type) {
			case T:
				return keyOf(rec)
			case *T:
				if rec == nil {
					return 0, false
				}
				return keyOf(*rec)
			}
			return 0, false
		},
	}
}

type collectionDef struct {
	name    string
	prefix  []byte
	indexes map[string]*indexDef
}

type indexDef struct {
	name   string
	prefix []byte
	keyOf  func(v any) (int64, bool)
}

// Layout is the set of collections and indexes a Store knows about.
type Layout struct {
	collections map[string]*collectionDef
}

// NewLayout returns an empty layout.
func NewLayout() *Layout {
	return &Layout{collections: make(map[string]*collectionDef)}
}

// Collection registers a collection with its indexes. Invalid or duplicate
// names are programming errors and panic.
func (l *Layout) Collection(name string, indexes ...IndexSpec) *Layout {
	if name == "" || strings.ContainsRune(name, 0) {
		panic(fmt.Sprintf("kvstore: invalid collection name %q", name))
	}
	if _, ok := l.collections[name]; ok {
		panic(fmt.Sprintf("kvstore: collection %q registered twice", name))
	}
	def := &collectionDef{
		name:    name,
		prefix:  primaryPrefix(name),
		indexes: make(map[string]*indexDef, len(indexes)),
	}
	for _, spec := range indexes {
		if spec.Name == "" || strings.ContainsRune(spec.Name, 0) || spec.KeyOf == nil {
			panic(fmt.Sprintf("kvstore: invalid index %q on %q", spec.Name, name))
		}
		def.indexes[spec.Name] = &indexDef{
			name:   spec.Name,
			prefix: indexPrefix(name, spec.Name),
			keyOf:  spec.KeyOf,
		}
	}
	l.collections[name] = def
	return l
}

// Names returns the registered collection names.
func (l *Layout) Names() []string {
	names := make([]string, 0, len(l.collections))
	for name := range l.collections {
		names = append(names, name)
	}
	return names
}

// Store owns the badger database and the layout of its collections.
type Store struct {
	db       *badger.DB
	layout   *Layout
	codec    Codec
	gc       *gcRunner
	inMemory bool
	logger   *slog.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithCodec replaces the default JSON codec.
func WithCodec(c Codec) Option { return func(s *Store) { s.codec = c } }

// Open opens the badger database described by cfg and serves the collections
// of layout.
func Open(cfg Config, layout *Layout, opts ...Option) (*Store, error) {
	db, err := openBadger(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		db:       db,
		layout:   layout,
		codec:    JSONCodec{},
		inMemory: cfg.InMemory,
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create GC runner: %w", err)
		}
		s.gc = runner
		runner.start()
	}
	return s, nil
}

// Close stops background GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Layout returns the collections served by the store.
func (s *Store) Layout() *Layout {
	return s.layout
}

// Begin opens a transaction over the named collections.
func (s *Store) Begin(ctx context.Context, mode Mode, collections ...string) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}
	scope := make(map[string]*collectionDef, len(collections))
	for _, name := range collections {
		def, ok := s.layout.collections[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
		}
		scope[name] = def
	}
	return &Tx{
		store: s,
		txn:   s.db.NewTransaction(mode == ReadWrite),
		mode:  mode,
		scope: scope,
		done:  make(chan struct{}),
	}, nil
}

// View runs fn inside a read-only transaction.
func (s *Store) View(ctx context.Context, collections []string, fn func(tx *Tx) error) error {
	tx, err := s.Begin(ctx, ReadOnly, collections...)
	if err != nil {
		return err
	}
	defer tx.discard()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Update runs fn inside a read-write transaction and commits when fn
// returns nil. Any error or panic discards every write.
func (s *Store) Update(ctx context.Context, collections []string, fn func(tx *Tx) error) error {
	tx, err := s.Begin(ctx, ReadWrite, collections...)
	if err != nil {
		return err
	}
	defer tx.discard()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
