package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence. Suitable for
// harness runs where the injected-fault record must survive the process,
// e.g. to correlate a crash under test with the fault that caused it.
//
// SQLiteStore uses a write-ahead log (WAL) for better concurrent read
// performance.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string

	mu        sync.RWMutex
	closeOnce sync.Once

	// preparedStatements contains pre-compiled SQL statements for reuse
	insertStmt *sql.Stmt
	countStmt  *sql.Stmt
	pruneStmt  *sql.Stmt
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a SQLite event store with default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig creates a SQLite event store with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStore{
		db:     db,
		dbPath: cfg.DBPath,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := store.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS fault_events (
		id TEXT PRIMARY KEY,
		ts INTEGER NOT NULL,
		key_class TEXT NOT NULL,
		key_value TEXT NOT NULL,
		pattern TEXT NOT NULL,
		behavior TEXT NOT NULL,
		cause TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_fault_events_ts ON fault_events(ts);
	CREATE INDEX IF NOT EXISTS idx_fault_events_class ON fault_events(key_class);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.insertStmt, err = s.db.Prepare(`
		INSERT INTO fault_events (id, ts, key_class, key_value, pattern, behavior, cause)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`SELECT COUNT(*) FROM fault_events`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}

	s.pruneStmt, err = s.db.Prepare(`DELETE FROM fault_events WHERE ts < ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare prune statement: %w", err)
	}

	return nil
}

// Record persists one event.
func (s *SQLiteStore) Record(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.ID == "" {
		return fmt.Errorf("event ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.insertStmt.ExecContext(ctx,
		event.ID,
		event.Time.UnixMilli(),
		event.KeyClass,
		event.KeyValue,
		event.Pattern,
		event.Behavior,
		event.Cause,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	return nil
}

// List returns the most recent events, newest first.
func (s *SQLiteStore) List(ctx context.Context, keyClass string, limit int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, ts, key_class, key_value, pattern, behavior, cause
		FROM fault_events
	`
	var args []any
	if keyClass != "" {
		query += ` WHERE key_class = ?`
		args = append(args, keyClass)
	}
	query += ` ORDER BY ts DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			ev    Event
			ts    int64
			cause sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.KeyClass, &ev.KeyValue, &ev.Pattern, &ev.Behavior, &cause); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ev.Time = time.UnixMilli(ts)
		ev.Cause = cause.String
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return events, nil
}

// Count returns the total number of stored events.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	if err := s.countStmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// Prune deletes events older than the cutoff.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.pruneStmt.ExecContext(ctx, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Close releases the database. Close is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		if s.insertStmt != nil {
			s.insertStmt.Close()
		}
		if s.countStmt != nil {
			s.countStmt.Close()
		}
		if s.pruneStmt != nil {
			s.pruneStmt.Close()
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}
