// Package mirror copies store records into a relational database from a
// background worker. Callers talk to the worker with Request and Response
// messages; failures inside the worker never escape as panics.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/jmoiron/sqlx"

	"github.com/at-ishikawa/flashq/internal/database"
	"github.com/at-ishikawa/flashq/schemas"
)

type RequestType string

const (
	TypeExport RequestType = "export"
	TypeReset  RequestType = "reset"
	TypeImport RequestType = "import"
)

const (
	table            = "mirror_records"
	defaultBatchSize = 500
)

var (
	ErrUnknownType = errors.New("mirror: unknown request type")
	ErrStopped     = errors.New("mirror: worker stopped")
)

// Request is a message to the worker. Args carries a Snapshot for import.
type Request struct {
	ID   string          `json:"id"`
	Type RequestType     `json:"type"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response answers the Request with the same ID. Value carries a Snapshot
// for export.
type Response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Value  json.RawMessage `json:"value,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// Row is one store record. Body is the record's JSON encoding.
type Row struct {
	Collection string `db:"collection" json:"collection"`
	ID         int64  `db:"id" json:"id"`
	Body       string `db:"body" json:"body"`
}

type Snapshot struct {
	Rows []Row `json:"rows"`
	// Replace clears the table in the same transaction that inserts Rows.
	Replace bool `json:"replace,omitempty"`
}

type envelope struct {
	req   Request
	reply chan Response
}

type Worker struct {
	db        *sqlx.DB
	logger    *slog.Logger
	batchSize int
	requests  chan envelope
	done      chan struct{}
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

// WithBatchSize sets how many rows go into one INSERT statement.
func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func NewWorker(db *sqlx.DB, opts ...Option) *Worker {
	w := &Worker{
		db:        db,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		requests:  make(chan envelope),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Migrate applies the embedded migrations. Every statement is idempotent.
func (w *Worker) Migrate(ctx context.Context) error {
	stmts, err := schemas.Statements()
	if err != nil {
		return err
	}
	for _, stmt := range stmts {
		if _, err := w.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

// Run serves requests until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	defer close(w.done)
	w.logger.Debug("mirror worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("mirror worker stopped")
			return ctx.Err()
		case env := <-w.requests:
			env.reply <- w.Handle(ctx, env.req)
		}
	}
}

// Submit hands req to the running worker and waits for its response.
func (w *Worker) Submit(ctx context.Context, req Request) (Response, error) {
	reply := make(chan Response, 1)
	select {
	case w.requests <- envelope{req: req, reply: reply}:
	case <-w.done:
		return Response{}, ErrStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Handle runs req on the calling goroutine.
func (w *Worker) Handle(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "mirror request panicked",
				"id", req.ID,
				"type", req.Type,
				"panic", r,
				"stack", string(debug.Stack()))
			resp = Response{ID: req.ID, Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()

	value, err := w.dispatch(ctx, req)
	if err != nil {
		w.logger.WarnContext(ctx, "mirror request failed", "id", req.ID, "type", req.Type, "error", err)
		return Response{ID: req.ID, Reason: err.Error()}
	}
	return Response{ID: req.ID, OK: true, Value: value}
}

func (w *Worker) dispatch(ctx context.Context, req Request) (json.RawMessage, error) {
	switch req.Type {
	case TypeExport:
		snap, err := w.export(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)
	case TypeReset:
		return nil, w.reset(ctx)
	case TypeImport:
		var snap Snapshot
		if err := json.Unmarshal(req.Args, &snap); err != nil {
			return nil, fmt.Errorf("decode import args: %w", err)
		}
		return nil, w.insert(ctx, snap)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, req.Type)
	}
}

func (w *Worker) export(ctx context.Context) (Snapshot, error) {
	var rows []Row
	if err := w.db.SelectContext(ctx, &rows, "SELECT collection, id, body FROM "+table+" ORDER BY collection, id"); err != nil {
		return Snapshot{}, fmt.Errorf("load %s: %w", table, err)
	}
	return Snapshot{Rows: rows}, nil
}

func (w *Worker) reset(ctx context.Context) error {
	if _, err := w.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	return nil
}

func (w *Worker) insert(ctx context.Context, snap Snapshot) error {
	rows := snap.Rows
	if len(rows) == 0 && !snap.Replace {
		return nil
	}
	columns := []string{"collection", "id", "body"}
	return database.RunInTx(ctx, w.db, func(ctx context.Context, tx *sqlx.Tx) error {
		if snap.Replace {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for start := 0; start < len(rows); start += w.batchSize {
			batch := rows[start:min(start+w.batchSize, len(rows))]
			query := database.BuildMultiRowInsert(table, columns, len(batch))
			args := make([]any, 0, len(batch)*len(columns))
			for _, r := range batch {
				args = append(args, r.Collection, r.ID, r.Body)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("insert %s: %w", table, err)
			}
		}
		return nil
	})
}
