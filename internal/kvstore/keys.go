package kvstore

import (
	"bytes"
	"encoding/binary"
)

// Direction is the traversal order of a cursor.
type Direction int

const (
	// Next walks keys in ascending order.
	Next Direction = iota
	// Prev walks keys in descending order.
	Prev
)

// Range restricts a cursor or a count to a span of keys.
// A nil *Range matches every key.
type Range struct {
	Lower     *int64
	Upper     *int64
	LowerOpen bool
	UpperOpen bool
}

// Only matches exactly one key.
func Only(key int64) *Range {
	return &Range{Lower: &key, Upper: &key}
}

// Bound matches keys between lower and upper.
func Bound(lower, upper int64, lowerOpen, upperOpen bool) *Range {
	return &Range{Lower: &lower, Upper: &upper, LowerOpen: lowerOpen, UpperOpen: upperOpen}
}

// LowerBound matches keys at or above (above if open) lower.
func LowerBound(lower int64, open bool) *Range {
	return &Range{Lower: &lower, LowerOpen: open}
}

// UpperBound matches keys at or below (below if open) upper.
func UpperBound(upper int64, open bool) *Range {
	return &Range{Upper: &upper, UpperOpen: open}
}

// Includes reports whether key lies inside the range.
func (r *Range) Includes(key int64) bool {
	return !r.before(key) && !r.after(key)
}

// before reports whether key sorts below the range.
func (r *Range) before(key int64) bool {
	if r == nil || r.Lower == nil {
		return false
	}
	return key < *r.Lower || (r.LowerOpen && key == *r.Lower)
}

// after reports whether key sorts above the range.
func (r *Range) after(key int64) bool {
	if r == nil || r.Upper == nil {
		return false
	}
	return key > *r.Upper || (r.UpperOpen && key == *r.Upper)
}

const keyWidth = 8

// encodeKey maps an int64 onto 8 bytes whose lexical order matches numeric order.
func encodeKey(k int64) []byte {
	var b [keyWidth]byte
	binary.BigEndian.PutUint64(b[:], uint64(k)^(1<<63))
	return b[:]
}

func decodeKey(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b[:keyWidth]) ^ (1 << 63))
}

// primaryPrefix is "<collection>\x00p\x00".
func primaryPrefix(collection string) []byte {
	return []byte(collection + "\x00p\x00")
}

// indexPrefix is "<collection>\x00i\x00<index>\x00".
func indexPrefix(collection, index string) []byte {
	return []byte(collection + "\x00i\x00" + index + "\x00")
}

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

// seekKey returns where a traversal over prefix starts for the given range.
func seekKey(prefix []byte, r *Range, dir Direction) []byte {
	if dir == Prev {
		// Past every key sharing prefix (and the given upper bound).
		tail := bytes.Repeat([]byte{0xFF}, 2*keyWidth+1)
		if r != nil && r.Upper != nil {
			return join(prefix, encodeKey(*r.Upper), tail)
		}
		return join(prefix, tail)
	}
	if r != nil && r.Lower != nil {
		return join(prefix, encodeKey(*r.Lower))
	}
	return append([]byte(nil), prefix...)
}
