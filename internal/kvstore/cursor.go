package kvstore

import (
	"iter"
)

// Cursor walks a collection or one of its indexes lazily. Cursors are
// values: Filter and Limit return a new cursor and leave the receiver as is.
//
// A cursor holds a badger iterator only while it is being walked. In a
// read-write Tx at most one cursor may be walked at a time.
type Cursor[T any] struct {
	coll     *Collection[T]
	index    *indexDef
	rng      *Range
	dir      Direction
	filters  []func(T) bool
	limit    int
	skipVals bool
	err      error
}

// Filter returns a cursor that only yields records accepted by keep.
func (c *Cursor[T]) Filter(keep func(T) bool) *Cursor[T] {
	next := *c
	next.filters = append(append([]func(T) bool(nil), c.filters...), keep)
	next.err = nil
	return &next
}

// Limit returns a cursor that stops after n records. n <= 0 means no limit.
func (c *Cursor[T]) Limit(n int) *Cursor[T] {
	next := *c
	next.limit = n
	next.err = nil
	return &next
}

func (c *Cursor[T]) keysOnly() *Cursor[T] {
	next := *c
	next.skipVals = len(c.filters) == 0
	return &next
}

// walk calls fn for each matching record until fn returns false.
func (c *Cursor[T]) walk(fn func(key int64, v T) bool) error {
	tx := c.coll.tx
	prefix := c.coll.def.prefix
	if c.index != nil {
		prefix = c.index.prefix
	}
	// Index entries carry no value; records are fetched by primary key.
	prefetch := c.index == nil && !c.skipVals
	it, err := tx.newIterator(prefix, c.dir, prefetch)
	if err != nil {
		return err
	}
	defer it.close()

	it.seek(seekKey(prefix, c.rng, c.dir))
	seen := 0
	for {
		raw, value, ok, err := it.next(prefetch)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		rest := raw[len(prefix):]
		pos := decodeKey(rest)
		pk := pos
		if c.index != nil {
			pk = decodeKey(rest[keyWidth:])
		}
		if c.dir == Next && c.rng.after(pos) || c.dir == Prev && c.rng.before(pos) {
			return nil
		}
		if !c.rng.Includes(pos) {
			continue
		}

		var v T
		if !c.skipVals {
			if c.index != nil {
				var found bool
				value, found, err = tx.get(c.coll.key(pk))
				if err != nil {
					return err
				}
				if !found {
					continue
				}
			}
			if v, err = c.coll.decode(pk, value); err != nil {
				return err
			}
			if !c.accept(v) {
				continue
			}
		}
		if !fn(pk, v) {
			return nil
		}
		seen++
		if c.limit > 0 && seen >= c.limit {
			return nil
		}
	}
}

func (c *Cursor[T]) accept(v T) bool {
	for _, keep := range c.filters {
		if !keep(v) {
			return false
		}
	}
	return true
}

// All yields primary keys and records. Check Err once the loop ends.
func (c *Cursor[T]) All() iter.Seq2[int64, T] {
	return func(yield func(int64, T) bool) {
		c.err = c.walk(yield)
	}
}

// Err returns the error that ended the last All loop.
func (c *Cursor[T]) Err() error {
	return c.err
}

// Each calls fn for each record and stops at the first error.
func (c *Cursor[T]) Each(fn func(key int64, v T) error) error {
	var fnErr error
	err := c.walk(func(key int64, v T) bool {
		fnErr = fn(key, v)
		return fnErr == nil
	})
	if err != nil {
		return err
	}
	return fnErr
}

// First returns the first matching record.
func (c *Cursor[T]) First() (key int64, v T, found bool, err error) {
	err = c.walk(func(k int64, rec T) bool {
		key, v, found = k, rec, true
		return false
	})
	return key, v, found, err
}

// GetAll collects every matching record.
func (c *Cursor[T]) GetAll() ([]T, error) {
	var out []T
	err := c.walk(func(_ int64, v T) bool {
		out = append(out, v)
		return true
	})
	return out, err
}

// Keys collects the primary keys of every matching record.
func (c *Cursor[T]) Keys() ([]int64, error) {
	var out []int64
	err := c.keysOnly().walk(func(k int64, _ T) bool {
		out = append(out, k)
		return true
	})
	return out, err
}

// Count returns the number of matching records.
func (c *Cursor[T]) Count() (int, error) {
	n := 0
	err := c.walk(func(int64, T) bool {
		n++
		return true
	})
	return n, err
}

// Update applies fn to every matching record and writes the result back.
// Records are collected first so no iterator is open while writing.
func (c *Cursor[T]) Update(fn func(v *T) error) (int, error) {
	type entry struct {
		key int64
		v   T
	}
	var entries []entry
	if err := c.walk(func(k int64, v T) bool {
		entries = append(entries, entry{key: k, v: v})
		return true
	}); err != nil {
		return 0, err
	}
	for i, e := range entries {
		prev := e.v
		if err := fn(&e.v); err != nil {
			return i, err
		}
		if err := c.coll.write(e.key, &prev, e.v); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// Delete removes every matching record.
func (c *Cursor[T]) Delete() (int, error) {
	keys, err := c.Keys()
	if err != nil {
		return 0, err
	}
	for i, k := range keys {
		if err := c.coll.Delete(k); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}
