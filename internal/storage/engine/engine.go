package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dmitrijs2005/pinvault/internal/dbx"
	"github.com/dmitrijs2005/pinvault/internal/logging"
	"github.com/dmitrijs2005/pinvault/internal/storage/blockstore"
	"github.com/dmitrijs2005/pinvault/internal/storage/engine/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// ErrNotReady is returned for calls made before Open completed or after Close.
var ErrNotReady = errors.New("persistence engine not ready")

// DefaultSnapshotName is the block store object holding the database image.
const DefaultSnapshotName = "vault.db"

// snapshotTables lists the tables restored from a snapshot, with their columns.
var snapshotTables = []struct {
	name    string
	columns []string
}{
	{"notes", []string{"id", "title_encrypted", "content_encrypted", "created_at", "updated_at", "tags_encrypted", "is_favorite"}},
	{"events", []string{"id", "title_encrypted", "description_encrypted", "start_time", "end_time", "is_all_day", "calendar_type", "rrule_encrypted"}},
	{"settings", []string{"key", "value"}},
}

// Options configure Open.
type Options struct {
	Store        blockstore.Store
	SnapshotName string
	Logger       logging.Logger
}

// Stats reports snapshot write activity.
type Stats struct {
	Requests uint64 // mutations that asked for a snapshot
	Writes   uint64 // snapshot write attempts
	Failures uint64 // failed write attempts
}

// Engine is an in-memory SQLite database whose full image is written to a
// block store after every mutation.
//
// Concurrent mutations are coalesced: at most one snapshot write is in flight
// and a mutation that lands while one is running is covered by the next one.
// ExecContext and WithTx return only after a snapshot taken after the
// mutation finished has been attempted.
type Engine struct {
	db      *sql.DB
	store   blockstore.Store
	name    string
	logger  logging.Logger
	workDir string

	stateMu sync.RWMutex
	ready   bool

	saveMu    sync.Mutex
	saved     *sync.Cond
	inFlight  bool
	pending   bool
	requested uint64 // last ticket handed to a mutation
	covered   uint64 // highest ticket covered by a finished write attempt
	stats     Stats
	lastErr   error
}

var _ dbx.DBTX = (*Engine)(nil)
var _ dbx.TxRunner = (*Engine)(nil)

// Open creates the in-memory database, migrates it and restores the last
// snapshot from the store if one exists. On first run an initial snapshot of
// the empty schema is written.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("engine: block store is required")
	}
	if opts.SnapshotName == "" {
		opts.SnapshotName = DefaultSnapshotName
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open in-memory database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	workDir, err := os.MkdirTemp("", "pinvault-engine-")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	e := &Engine{
		db:      db,
		store:   opts.Store,
		name:    opts.SnapshotName,
		logger:  opts.Logger.With("component", "engine"),
		workDir: workDir,
	}
	e.saved = sync.NewCond(&e.saveMu)

	if err := e.init(ctx); err != nil {
		_ = db.Close()
		_ = os.RemoveAll(workDir)
		return nil, err
	}

	e.ready = true
	return e, nil
}

func (e *Engine) init(ctx context.Context) error {
	if err := RunMigrations(ctx, e.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	image, err := e.store.Get(ctx, e.name)
	switch {
	case errors.Is(err, blockstore.ErrNotFound):
		e.logger.Info(ctx, "no snapshot found, starting empty", "snapshot", e.name)
		if err := e.writeSnapshot(ctx); err != nil {
			return fmt.Errorf("initial snapshot: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("load snapshot: %w", err)
	}

	if err := e.restore(ctx, image); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	e.logger.Info(ctx, "snapshot restored", "snapshot", e.name, "bytes", len(image))
	return nil
}

// RunMigrations applies the embedded schema migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// restore attaches the snapshot image and copies its rows into the live schema.
func (e *Engine) restore(ctx context.Context, image []byte) error {
	path := filepath.Join(e.workDir, "restore.db")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		return err
	}
	defer os.Remove(path)

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "ATTACH DATABASE ? AS snap", path); err != nil {
		return err
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "DETACH DATABASE snap"); err != nil {
			e.logger.Warn(ctx, "detach snapshot failed", "error", err)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, t := range snapshotTables {
		cols := strings.Join(t.columns, ", ")
		q := fmt.Sprintf("INSERT INTO main.%s (%s) SELECT %s FROM snap.%s", t.name, cols, cols, t.name)
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("copy %s: %w", t.name, err)
		}
	}
	return tx.Commit()
}

// writeSnapshot serializes the whole database and stores it.
func (e *Engine) writeSnapshot(ctx context.Context) error {
	path := filepath.Join(e.workDir, "snapshot.db")
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	defer os.Remove(path)

	if _, err := e.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("vacuum into: %w", err)
	}
	image, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := e.store.Put(ctx, e.name, image); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// persist blocks until a snapshot write that started after the caller's
// mutation has finished. The first caller to find no write in flight becomes
// the writer and keeps writing while further requests arrive.
func (e *Engine) persist(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	e.saveMu.Lock()
	e.requested++
	e.stats.Requests++
	ticket := e.requested

	if e.inFlight {
		e.pending = true
		for e.covered < ticket {
			e.saved.Wait()
		}
		e.saveMu.Unlock()
		return
	}

	e.inFlight = true
	for {
		e.pending = false
		upTo := e.requested
		e.saveMu.Unlock()

		err := e.writeSnapshot(ctx)

		e.saveMu.Lock()
		e.stats.Writes++
		if err != nil {
			e.stats.Failures++
			e.lastErr = err
			e.logger.Error(ctx, "snapshot write failed", "snapshot", e.name, "error", err)
		} else {
			e.lastErr = nil
		}
		e.covered = upTo
		e.saved.Broadcast()
		if !e.pending {
			break
		}
	}
	e.inFlight = false
	e.saveMu.Unlock()
}

func (e *Engine) acquire() error {
	e.stateMu.RLock()
	if !e.ready {
		e.stateMu.RUnlock()
		return ErrNotReady
	}
	return nil
}

// ExecContext runs a mutating statement and waits for it to be persisted.
// A failed snapshot write does not fail the statement; see LastSaveError.
func (e *Engine) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.stateMu.RUnlock()

	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	e.persist(ctx)
	return res, nil
}

// QueryContext runs a read-only query.
func (e *Engine) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if err := e.acquire(); err != nil {
		return nil, err
	}
	defer e.stateMu.RUnlock()
	return e.db.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a query expected to return at most one row.
// After Close the returned row's Scan reports that the database is closed.
func (e *Engine) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if err := e.acquire(); err != nil {
		return e.db.QueryRowContext(ctx, query, args...)
	}
	defer e.stateMu.RUnlock()
	return e.db.QueryRowContext(ctx, query, args...)
}

// WithTx runs fn inside a transaction and persists once after commit.
func (e *Engine) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.stateMu.RUnlock()

	if err := dbx.WithTx(ctx, e.db, nil, fn); err != nil {
		return err
	}
	e.persist(ctx)
	return nil
}

// Flush forces a snapshot write and returns its outcome.
func (e *Engine) Flush(ctx context.Context) error {
	if err := e.acquire(); err != nil {
		return err
	}
	defer e.stateMu.RUnlock()

	e.persist(ctx)
	return e.LastSaveError()
}

// LastSaveError returns the error of the most recent snapshot write, or nil
// if it succeeded.
func (e *Engine) LastSaveError() error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	return e.lastErr
}

// Stats returns a copy of the write counters.
func (e *Engine) Stats() Stats {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()
	return e.stats
}

// Close retries a failed snapshot write once, then releases the database.
// Later calls return ErrNotReady.
func (e *Engine) Close(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if !e.ready {
		return ErrNotReady
	}
	e.ready = false

	var flushErr error
	if e.LastSaveError() != nil {
		e.persist(ctx)
		flushErr = e.LastSaveError()
	}

	return errors.Join(flushErr, e.db.Close(), os.RemoveAll(e.workDir))
}
