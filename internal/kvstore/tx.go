package kvstore

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Tx is a transaction scoped to a fixed set of collections.
//
// Reads issued from several goroutines are serialized internally, so callers
// may fan out independent reads over one Tx. A read-write Tx allows only one
// open cursor at a time.
type Tx struct {
	store *Store
	txn   *badger.Txn
	mode  Mode
	scope map[string]*collectionDef

	mu        sync.Mutex
	iterating int
	finished  bool
	err       error
	done      chan struct{}
}

// Mode returns the transaction mode.
func (tx *Tx) Mode() Mode {
	return tx.mode
}

// Done is closed once the transaction has committed or aborted.
func (tx *Tx) Done() <-chan struct{} {
	return tx.done
}

// Err returns nil after a successful commit and the abort cause otherwise.
// It is only meaningful once Done is closed.
func (tx *Tx) Err() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.err
}

// Commit makes every write durable. Committing a finished transaction
// returns ErrTxFinished.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.finished {
		return ErrTxFinished
	}
	if tx.iterating > 0 {
		return ErrCursorOpen
	}
	var err error
	if tx.mode == ReadWrite {
		err = tx.txn.Commit()
	} else {
		tx.txn.Discard()
	}
	if err != nil {
		tx.finishLocked(fmt.Errorf("%w: %w", ErrAborted, err))
		return err
	}
	tx.finishLocked(nil)
	return nil
}

// Rollback discards every write. Rolling back a finished transaction returns
// ErrTxFinished.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.finished {
		return ErrTxFinished
	}
	if tx.iterating > 0 {
		return ErrCursorOpen
	}
	tx.txn.Discard()
	tx.finishLocked(ErrAborted)
	return nil
}

// discard aborts the transaction unless it already finished.
func (tx *Tx) discard() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.finished {
		return
	}
	tx.txn.Discard()
	tx.finishLocked(ErrAborted)
}

func (tx *Tx) finishLocked(err error) {
	tx.finished = true
	tx.err = err
	close(tx.done)
}

func (tx *Tx) collection(name string) (*collectionDef, error) {
	def, ok := tx.scope[name]
	if !ok {
		if _, known := tx.store.layout.collections[name]; !known {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
		}
		return nil, fmt.Errorf("%w: %q", ErrNotInScope, name)
	}
	return def, nil
}

// get reads a raw value. found is false when the key is absent.
func (tx *Tx) get(key []byte) (value []byte, found bool, err error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.getLocked(key)
}

func (tx *Tx) getLocked(key []byte) ([]byte, bool, error) {
	if tx.finished {
		return nil, false, ErrTxFinished
	}
	item, err := tx.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (tx *Tx) set(key, value []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.writableLocked(); err != nil {
		return err
	}
	return tx.txn.Set(key, value)
}

func (tx *Tx) delete(key []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.writableLocked(); err != nil {
		return err
	}
	return tx.txn.Delete(key)
}

func (tx *Tx) writableLocked() error {
	if tx.finished {
		return ErrTxFinished
	}
	if tx.mode != ReadWrite {
		return ErrReadOnly
	}
	return nil
}

// iterator is a badger iterator whose every step holds the Tx lock.
type iterator struct {
	tx     *Tx
	it     *badger.Iterator
	prefix []byte
}

func (tx *Tx) newIterator(prefix []byte, dir Direction, values bool) (*iterator, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.finished {
		return nil, ErrTxFinished
	}
	if tx.mode == ReadWrite && tx.iterating > 0 {
		return nil, ErrCursorBusy
	}
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = values
	opts.Reverse = dir == Prev
	opts.Prefix = prefix
	tx.iterating++
	return &iterator{tx: tx, it: tx.txn.NewIterator(opts), prefix: prefix}, nil
}

func (i *iterator) seek(key []byte) {
	i.tx.mu.Lock()
	defer i.tx.mu.Unlock()
	i.it.Seek(key)
}

// next copies the current entry and advances. ok is false at the end.
func (i *iterator) next(withValue bool) (key, value []byte, ok bool, err error) {
	i.tx.mu.Lock()
	defer i.tx.mu.Unlock()

	if i.tx.finished {
		return nil, nil, false, ErrTxFinished
	}
	if !i.it.ValidForPrefix(i.prefix) {
		return nil, nil, false, nil
	}
	item := i.it.Item()
	key = item.KeyCopy(nil)
	if withValue {
		if value, err = item.ValueCopy(nil); err != nil {
			return nil, nil, false, err
		}
	}
	i.it.Next()
	return key, value, true, nil
}

func (i *iterator) close() {
	i.tx.mu.Lock()
	defer i.tx.mu.Unlock()
	i.it.Close()
	i.tx.iterating--
}
