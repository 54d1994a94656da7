package kvstore

import (
	"fmt"
)

// Collection is a typed handle on one collection inside a Tx.
type Collection[T any] struct {
	tx  *Tx
	def *collectionDef
}

// Use returns the collection name of tx, decoding records as T.
// The collection must be declared when the Tx began.
func Use[T any](tx *Tx, name string) (*Collection[T], error) {
	def, err := tx.collection(name)
	if err != nil {
		return nil, err
	}
	return &Collection[T]{tx: tx, def: def}, nil
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.def.name
}

func (c *Collection[T]) key(k int64) []byte {
	return join(c.def.prefix, encodeKey(k))
}

func (c *Collection[T]) decode(key int64, raw []byte) (T, error) {
	var v T
	if err := c.tx.store.codec.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s/%d: %w", c.def.name, key, err)
	}
	return v, nil
}

// Get returns the record stored under key. found is false when absent.
func (c *Collection[T]) Get(key int64) (v T, found bool, err error) {
	raw, found, err := c.tx.get(c.key(key))
	if err != nil || !found {
		return v, found, err
	}
	v, err = c.decode(key, raw)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Put stores v under key, replacing any previous record and its index entries.
func (c *Collection[T]) Put(key int64, v T) error {
	old, found, err := c.Get(key)
	if err != nil {
		return err
	}
	var prev *T
	if found {
		prev = &old
	}
	return c.write(key, prev, v)
}

// Add stores v under key and fails with ErrKeyExists if the key is taken.
func (c *Collection[T]) Add(key int64, v T) error {
	_, found, err := c.tx.get(c.key(key))
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: %s/%d", ErrKeyExists, c.def.name, key)
	}
	return c.write(key, nil, v)
}

// NextKey returns one past the highest key in the collection, or 1 when empty.
func (c *Collection[T]) NextKey() (int64, error) {
	it, err := c.tx.newIterator(c.def.prefix, Prev, false)
	if err != nil {
		return 0, err
	}
	defer it.close()

	it.seek(seekKey(c.def.prefix, nil, Prev))
	key, _, ok, err := it.next(false)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	last := decodeKey(key[len(c.def.prefix):])
	if last < 1 {
		return 1, nil
	}
	return last + 1, nil
}

func (c *Collection[T]) write(key int64, prev *T, v T) error {
	raw, err := c.tx.store.codec.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%d: %w", c.def.name, key, err)
	}
	for _, idx := range c.def.indexes {
		newKey, newOK := idx.keyOf(v)
		if prev != nil {
			if oldKey, oldOK := idx.keyOf(*prev); oldOK && (!newOK || oldKey != newKey) {
				if err := c.tx.delete(join(idx.prefix, encodeKey(oldKey), encodeKey(key))); err != nil {
					return fmt.Errorf("drop %s.%s entry: %w", c.def.name, idx.name, err)
				}
			}
		}
		if newOK {
			if err := c.tx.set(join(idx.prefix, encodeKey(newKey), encodeKey(key)), nil); err != nil {
				return fmt.Errorf("write %s.%s entry: %w", c.def.name, idx.name, err)
			}
		}
	}
	if err := c.tx.set(c.key(key), raw); err != nil {
		return fmt.Errorf("write %s/%d: %w", c.def.name, key, err)
	}
	return nil
}

// Delete removes the record under key and its index entries. Deleting a
// missing key is not an error.
func (c *Collection[T]) Delete(key int64) error {
	old, found, err := c.Get(key)
	if err != nil || !found {
		return err
	}
	for _, idx := range c.def.indexes {
		if ik, ok := idx.keyOf(old); ok {
			if err := c.tx.delete(join(idx.prefix, encodeKey(ik), encodeKey(key))); err != nil {
				return fmt.Errorf("drop %s.%s entry: %w", c.def.name, idx.name, err)
			}
		}
	}
	if err := c.tx.delete(c.key(key)); err != nil {
		return fmt.Errorf("delete %s/%d: %w", c.def.name, key, err)
	}
	return nil
}

// Count returns the number of records whose key lies in r.
func (c *Collection[T]) Count(r *Range) (int, error) {
	return c.OpenCursor(r, Next).keysOnly().Count()
}

// OpenCursor returns a lazy cursor over the records whose key lies in r.
func (c *Collection[T]) OpenCursor(r *Range, dir Direction) *Cursor[T] {
	return &Cursor[T]{coll: c, rng: r, dir: dir}
}

// Index returns the secondary index view called name.
func (c *Collection[T]) Index(name string) (*Index[T], error) {
	idx, ok := c.def.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, c.def.name, name)
	}
	return &Index[T]{coll: c, def: idx}, nil
}

// Index is a secondary-index view. Ranges and ordering apply to the index
// key; records come back in (index key, primary key) order.
type Index[T any] struct {
	coll *Collection[T]
	def  *indexDef
}

// OpenCursor returns a lazy cursor over records whose index key lies in r.
func (i *Index[T]) OpenCursor(r *Range, dir Direction) *Cursor[T] {
	return &Cursor[T]{coll: i.coll, index: i.def, rng: r, dir: dir}
}

// Count returns the number of records whose index key lies in r.
func (i *Index[T]) Count(r *Range) (int, error) {
	return i.OpenCursor(r, Next).keysOnly().Count()
}

// GetAll returns every record whose index key equals key.
func (i *Index[T]) GetAll(key int64) ([]T, error) {
	return i.OpenCursor(Only(key), Next).GetAll()
}

// AddNext stores v under NextKey and returns the key it used.
func (c *Collection[T]) AddNext(v T) (int64, error) {
	key, err := c.NextKey()
	if err != nil {
		return 0, err
	}
	if err := c.write(key, nil, v); err != nil {
		return 0, err
	}
	return key, nil
}
