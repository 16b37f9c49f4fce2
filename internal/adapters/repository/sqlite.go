package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/tenderwatch/internal/domain/model"
	"github.com/okian/tenderwatch/internal/domain/types"
	"github.com/okian/tenderwatch/pkg/logger"
	"github.com/okian/tenderwatch/pkg/metrics"
)

// SQLiteStore implements Store on a sqlite meta table with one row per slot.
type SQLiteStore struct {
	path    string
	readDB  *sql.DB
	writeDB *sql.DB
	log     logger.Logger
	now     func() time.Time
	closed  atomic.Bool
}

var _ Store = (*SQLiteStore)(nil)

// Open opens or creates the store at path.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	s := &SQLiteStore{
		path:    path,
		readDB:  readDB,
		writeDB: writeDB,
		log:     logger.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes both database handles.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	if s.readDB != nil {
		errs = append(errs, s.readDB.Close())
	}
	if s.writeDB != nil {
		errs = append(errs, s.writeDB.Close())
	}
	return errors.Join(errs...)
}

func (s *SQLiteStore) get(ctx context.Context, key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrStoreClosed
	}
	var value string
	err := s.readDB.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

func upsert(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context) (Snapshot, error) {
	raw, ok, err := s.get(ctx, KeyTenders)
	if err != nil {
		return Snapshot{}, err
	}
	rawTS, tsOK, err := s.get(ctx, KeyTimestamp)
	if err != nil {
		return Snapshot{}, err
	}
	if !ok || !tsOK {
		metrics.RecordCacheRead(cacheReadMiss)
		return Snapshot{}, ErrNotFound
	}

	snap, err := decodeSnapshot(raw, rawTS)
	if err != nil {
		metrics.RecordCacheRead(cacheReadBroken)
		metrics.RecordErrorByComponent("cache", "corrupt")
		s.log.Warn(ctx, "ignoring corrupt cache snapshot", logger.Error(err), logger.String("path", s.path))
		return Snapshot{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	metrics.RecordCacheRead(cacheReadHit)
	metrics.UpdateSnapshot(snap.CapturedAt, len(snap.Tenders), s.now())
	return snap, nil
}

func decodeSnapshot(raw, rawTS string) (Snapshot, error) {
	ms, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: timestamp %q: %w", ErrCacheCorrupt, rawTS, err)
	}
	var tenders []model.Tender
	if err := json.Unmarshal([]byte(raw), &tenders); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrCacheCorrupt, err)
	}
	if tenders == nil {
		tenders = []model.Tender{}
	}
	return Snapshot{Tenders: tenders, CapturedAt: time.UnixMilli(ms)}, nil
}

// Write implements Store.
func (s *SQLiteStore) Write(ctx context.Context, snap Snapshot) error {
	start := time.Now()
	tenders := snap.Tenders
	if tenders == nil {
		tenders = []model.Tender{}
	}
	payload, err := json.Marshal(tenders)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsert(ctx, tx, KeyTenders, string(payload)); err != nil {
			return err
		}
		return upsert(ctx, tx, KeyTimestamp, strconv.FormatInt(snap.CapturedAt.UnixMilli(), 10))
	})
	if err != nil {
		metrics.RecordErrorByComponent("cache", "write")
		return err
	}

	metrics.RecordCacheWrite(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateSnapshot(snap.CapturedAt, len(tenders), s.now())
	return nil
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM meta WHERE key IN (?, ?)", KeyTenders, KeyTimestamp)
		if err != nil {
			return fmt.Errorf("clearing snapshot: %w", err)
		}
		return nil
	})
}

// Preferences implements Store.
func (s *SQLiteStore) Preferences(ctx context.Context) (types.Preferences, error) {
	email, _, err := s.get(ctx, KeyEmailAlerts)
	if err != nil {
		return types.Preferences{}, err
	}
	debug, _, err := s.get(ctx, KeyDebugMode)
	if err != nil {
		return types.Preferences{}, err
	}
	return types.Preferences{
		EmailAlerts: email == boolTrue,
		DebugMode:   debug == boolTrue,
	}, nil
}

// SetPreferences implements Store.
func (s *SQLiteStore) SetPreferences(ctx context.Context, p types.Preferences) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsert(ctx, tx, KeyEmailAlerts, formatBool(p.EmailAlerts)); err != nil {
			return err
		}
		return upsert(ctx, tx, KeyDebugMode, formatBool(p.DebugMode))
	})
}

func formatBool(b bool) string {
	if b {
		return boolTrue
	}
	return boolFalse
}

// Stats implements Store.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Path: s.path}
	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
	}

	snap, err := s.Read(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		return st, nil
	case err != nil:
		return st, err
	}
	st.HasData = true
	st.Records = len(snap.Tenders)
	st.CapturedAt = snap.CapturedAt
	return st, nil
}
