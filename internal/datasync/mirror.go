package datasync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/at-ishikawa/flashq/internal/kvstore"
	"github.com/at-ishikawa/flashq/internal/mirror"
	"github.com/at-ishikawa/flashq/internal/schema"
)

var ErrUnknownCollection = errors.New("datasync: snapshot row for an unknown collection")

// MirrorClient talks to the mirror worker.
type MirrorClient interface {
	Export(ctx context.Context) (mirror.Snapshot, error)
	Import(ctx context.Context, snap mirror.Snapshot) error
}

// SyncResult counts rows per collection.
type SyncResult map[string]int

type collectionCodec struct {
	name string
	dump func(tx *kvstore.Tx) ([]mirror.Row, error)
	load func(tx *kvstore.Tx, rows []mirror.Row) error
}

var collectionCodecs = []collectionCodec{
	codecFor[schema.Conf](schema.CollConfs),
	codecFor[schema.Prefs](schema.CollPrefs),
	codecFor[schema.Deck](schema.CollDecks),
	codecFor[schema.Model](schema.CollModels),
	codecFor[schema.Note](schema.CollNotes),
	codecFor[schema.Card](schema.CollCards),
	codecFor[schema.RevLog](schema.CollRevLog),
}

func codecFor[T any](name string) collectionCodec {
	return collectionCodec{
		name: name,
		dump: func(tx *kvstore.Tx) ([]mirror.Row, error) {
			coll, err := kvstore.Use[T](tx, name)
			if err != nil {
				return nil, err
			}
			var rows []mirror.Row
			err = coll.OpenCursor(nil, kvstore.Next).Each(func(key int64, v T) error {
				body, err := json.Marshal(v)
				if err != nil {
					return fmt.Errorf("encode %s/%d: %w", name, key, err)
				}
				rows = append(rows, mirror.Row{Collection: name, ID: key, Body: string(body)})
				return nil
			})
			return rows, err
		},
		load: func(tx *kvstore.Tx, rows []mirror.Row) error {
			coll, err := kvstore.Use[T](tx, name)
			if err != nil {
				return err
			}
			if _, err := coll.OpenCursor(nil, kvstore.Next).Delete(); err != nil {
				return fmt.Errorf("clear %s: %w", name, err)
			}
			for _, row := range rows {
				var v T
				if err := (schema.Codec{}).Unmarshal([]byte(row.Body), &v); err != nil {
					return fmt.Errorf("decode %s/%d: %w", name, row.ID, err)
				}
				if err := coll.Put(row.ID, v); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// Mirror replaces the mirror's contents with every record in the store,
// read from a single snapshot. The mirror is cleared and refilled by one
// import request, so a failed push leaves the previous contents in place.
func Mirror(ctx context.Context, store *kvstore.Store, client MirrorClient) (SyncResult, error) {
	result := make(SyncResult, len(collectionCodecs))
	var snap mirror.Snapshot
	err := store.View(ctx, schema.AllCollections, func(tx *kvstore.Tx) error {
		for _, c := range collectionCodecs {
			rows, err := c.dump(tx)
			if err != nil {
				return fmt.Errorf("dump %s: %w", c.name, err)
			}
			result[c.name] = len(rows)
			snap.Rows = append(snap.Rows, rows...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap.Replace = true
	if err := client.Import(ctx, snap); err != nil {
		return nil, fmt.Errorf("import into mirror: %w", err)
	}
	return result, nil
}

// Restore replaces every collection of the store with the mirror's
// contents. Nothing is written unless every row decodes.
func Restore(ctx context.Context, store *kvstore.Store, client MirrorClient) (SyncResult, error) {
	snap, err := client.Export(ctx)
	if err != nil {
		return nil, fmt.Errorf("export mirror: %w", err)
	}

	byCollection := make(map[string][]mirror.Row, len(collectionCodecs))
	for _, row := range snap.Rows {
		byCollection[row.Collection] = append(byCollection[row.Collection], row)
	}
	result := make(SyncResult, len(collectionCodecs))
	for _, c := range collectionCodecs {
		result[c.name] = len(byCollection[c.name])
	}
	for _, row := range snap.Rows {
		if _, ok := result[row.Collection]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, row.Collection)
		}
	}

	err = store.Update(ctx, schema.AllCollections, func(tx *kvstore.Tx) error {
		for _, c := range collectionCodecs {
			if err := c.load(tx, byCollection[c.name]); err != nil {
				return fmt.Errorf("load %s: %w", c.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
