package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(items []item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestCursor_Ranges(t *testing.T) {
	s := openTestStore(t)
	seedItems(t, s,
		item{ID: -2, Rank: 50},
		item{ID: 1, Rank: 40},
		item{ID: 2, Rank: 30},
		item{ID: 3, Rank: 30},
		item{ID: 4, Rank: 10},
	)

	tests := []struct {
		name  string
		index string
		rng   *Range
		dir   Direction
		want  []int64
	}{
		{name: "all ascending", rng: nil, dir: Next, want: []int64{-2, 1, 2, 3, 4}},
		{name: "all descending", rng: nil, dir: Prev, want: []int64{4, 3, 2, 1, -2}},
		{name: "open lower", rng: LowerBound(1, true), dir: Next, want: []int64{2, 3, 4}},
		{name: "open upper descending", rng: UpperBound(3, true), dir: Prev, want: []int64{2, 1, -2}},
		{name: "closed bound descending", rng: Bound(1, 3, false, false), dir: Prev, want: []int64{3, 2, 1}},
		{name: "index ascending ties by key", index: "by_rank", rng: nil, dir: Next, want: []int64{4, 2, 3, 1, -2}},
		{name: "index descending", index: "by_rank", rng: UpperBound(30, false), dir: Prev, want: []int64{3, 2, 4}},
		{name: "index only", index: "by_rank", rng: Only(30), dir: Next, want: []int64{2, 3}},
		{name: "empty range", rng: Bound(5, 1, false, false), dir: Next, want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.View(context.Background(), []string{"items"}, func(tx *Tx) error {
				coll, err := Use[item](tx, "items")
				require.NoError(t, err)

				cur := coll.OpenCursor(tt.rng, tt.dir)
				if tt.index != "" {
					idx, err := coll.Index(tt.index)
					require.NoError(t, err)
					cur = idx.OpenCursor(tt.rng, tt.dir)
				}
				got, err := cur.GetAll()
				require.NoError(t, err)
				assert.Equal(t, tt.want, ids(got))
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestCursor_FilterLimitFirst(t *testing.T) {
	s := openTestStore(t)
	seedItems(t, s,
		item{ID: 1, Rank: 1, Name: "a"},
		item{ID: 2, Rank: 2, Name: "b"},
		item{ID: 3, Rank: 3, Name: "a"},
		item{ID: 4, Rank: 4, Name: "a"},
	)

	err := s.View(context.Background(), []string{"items"}, func(tx *Tx) error {
		coll, err := Use[item](tx, "items")
		require.NoError(t, err)

		base := coll.OpenCursor(nil, Next)
		onlyA := base.Filter(func(it item) bool { return it.Name == "a" })

		n, err := onlyA.Count()
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = base.Count()
		require.NoError(t, err)
		assert.Equal(t, 4, n, "Filter must not change the receiver")

		got, err := onlyA.Limit(2).GetAll()
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3}, ids(got))

		key, first, found, err := onlyA.Filter(func(it item) bool { return it.Rank > 1 }).First()
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(3), key)
		assert.Equal(t, int64(3), first.ID)

		_, _, found, err = onlyA.Filter(func(it item) bool { return it.Rank > 9 }).First()
		require.NoError(t, err)
		assert.False(t, found)

		keys, err := onlyA.Keys()
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 3, 4}, keys)
		return nil
	})
	require.NoError(t, err)
}

func TestCursor_All(t *testing.T) {
	s := openTestStore(t)
	seedItems(t, s, item{ID: 1}, item{ID: 2}, item{ID: 3})

	err := s.View(context.Background(), []string{"items"}, func(tx *Tx) error {
		coll, err := Use[item](tx, "items")
		require.NoError(t, err)

		cur := coll.OpenCursor(nil, Next)
		var seen []int64
		for key := range cur.All() {
			seen = append(seen, key)
			if key == 2 {
				break
			}
		}
		require.NoError(t, cur.Err())
		assert.Equal(t, []int64{1, 2}, seen)
		return nil
	})
	require.NoError(t, err)
}

func TestCursor_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedItems(t, s,
		item{ID: 1, Group: 1, Rank: 1},
		item{ID: 2, Group: 1, Rank: 2},
		item{ID: 3, Group: 2, Rank: 3},
	)

	err := s.Update(ctx, []string{"items"}, func(tx *Tx) error {
		coll, err := Use[item](tx, "items")
		require.NoError(t, err)
		byGroup, err := coll.Index("by_group")
		require.NoError(t, err)

		n, err := byGroup.OpenCursor(Only(1), Next).Update(func(it *item) error {
			it.Group = 3
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = coll.OpenCursor(nil, Next).Filter(func(it item) bool { return it.Rank == 3 }).Delete()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, []string{"items"}, func(tx *Tx) error {
		coll, err := Use[item](tx, "items")
		require.NoError(t, err)
		byGroup, err := coll.Index("by_group")
		require.NoError(t, err)

		g1, err := byGroup.GetAll(1)
		require.NoError(t, err)
		assert.Empty(t, g1)

		g3, err := byGroup.GetAll(3)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2}, ids(g3))

		total, err := coll.Count(nil)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		return nil
	})
	require.NoError(t, err)
}

func TestCursor_OneActiveCursorPerWriteTx(t *testing.T) {
	s := openTestStore(t)
	seedItems(t, s, item{ID: 1}, item{ID: 2})

	err := s.Update(context.Background(), []string{"items"}, func(tx *Tx) error {
		coll, err := Use[item](tx, "items")
		require.NoError(t, err)

		var inner error
		err = coll.OpenCursor(nil, Next).Each(func(int64, item) error {
			_, inner = coll.Count(nil)
			return nil
		})
		require.NoError(t, err)
		assert.ErrorIs(t, inner, ErrCursorBusy)
		return nil
	})
	require.NoError(t, err)
}
