package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	k BLOB PRIMARY KEY,
	v BLOB NOT NULL
) WITHOUT ROWID`

// sqlitePageSize is how many rows an iterator fetches per round trip.
// Pages are read with keyset pagination so no statement stays open between
// calls to Next and writers are never starved of the single connection.
const sqlitePageSize = 64

// SQLite implements Store on a single SQLite table.
type SQLite struct {
	db     *sql.DB
	locks  *KeyLocks
	closed bool
	mu     sync.RWMutex

	// writeMu serializes writes so the synchronous pragma set for one write
	// covers exactly that write.
	writeMu sync.Mutex
}

var _ Store = (*SQLite)(nil)

// OpenSQLite creates or opens a SQLite-backed store at path.
// ":memory:" opens a private in-memory database.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time. A single connection also
	// keeps an in-memory database alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}

	return &SQLite{db: db, locks: NewKeyLocks()}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// mapSQLiteError translates driver errors into kv sentinels.
func mapSQLiteError(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%w: %v", ErrLocked, err)
	case sqlite3.ErrConstraint:
		if se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrExists
		}
	}
	return err
}

// write runs exec under the durability hint. NORMAL is the connection
// default; Sync raises it to FULL, forcing an fsync on commit, and restores
// NORMAL before the next write may start.
func (s *SQLite) write(opts WriteOptions, exec func() error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !opts.Sync {
		return exec()
	}
	if _, err := s.db.Exec("PRAGMA synchronous = FULL"); err != nil {
		return fmt.Errorf("enable synchronous writes: %w", err)
	}
	defer func() { _, _ = s.db.Exec("PRAGMA synchronous = NORMAL") }()
	return exec()
}

func (s *SQLite) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	var value []byte
	err := s.db.QueryRow("SELECT v FROM kv WHERE k = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	return value, nil
}

func (s *SQLite) Put(key, value []byte, opts WriteOptions) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	return s.write(opts, func() error {
		_, err := s.db.Exec(
			"INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v",
			key, value,
		)
		return mapSQLiteError(err)
	})
}

// Create relies on the primary key to reject occupied keys. The in-process
// lock table reports contention between local creators as ErrLocked, the
// same way the pebble engine does.
func (s *SQLite) Create(key, value []byte, opts WriteOptions) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	if !s.locks.TryLock(key) {
		return ErrLocked
	}
	defer s.locks.Unlock(key)

	return s.write(opts, func() error {
		_, err := s.db.Exec("INSERT INTO kv (k, v) VALUES (?, ?)", key, value)
		return mapSQLiteError(err)
	})
}

func (s *SQLite) Delete(key []byte, opts WriteOptions) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	return s.write(opts, func() error {
		_, err := s.db.Exec("DELETE FROM kv WHERE k = ?", key)
		return mapSQLiteError(err)
	})
}

func (s *SQLite) NewIterator(opts IterOptions) (Iterator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	return &sqliteIterator{store: s, opts: opts}, nil
}

// Close closes the database connection. Closing twice is a no-op.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type sqlitePair struct {
	key   []byte
	value []byte
}

type sqliteIterator struct {
	store *SQLite
	opts  IterOptions

	page    []sqlitePair
	pos     int
	last    []byte // key of the last pair handed out, resumes the next page
	done    bool
	err     error
	closed  bool
	current *sqlitePair
}

func (it *sqliteIterator) Next() bool {
	if it.closed || it.err != nil {
		return false
	}
	if it.pos >= len(it.page) {
		if it.done {
			it.current = nil
			return false
		}
		if err := it.fetch(); err != nil {
			it.err = err
			it.current = nil
			return false
		}
		if len(it.page) == 0 {
			it.done = true
			it.current = nil
			return false
		}
	}
	it.current = &it.page[it.pos]
	it.last = it.current.key
	it.pos++
	return true
}

func (it *sqliteIterator) fetch() error {
	it.store.mu.RLock()
	defer it.store.mu.RUnlock()

	if it.store.closed {
		return ErrClosed
	}

	query := "SELECT k, v FROM kv WHERE 1 = 1"
	var args []any

	if it.opts.LowerBound != nil {
		query += " AND k >= ?"
		args = append(args, it.opts.LowerBound)
	}
	if it.opts.UpperBound != nil {
		query += " AND k < ?"
		args = append(args, it.opts.UpperBound)
	}
	if it.last != nil {
		if it.opts.Reverse {
			query += " AND k < ?"
		} else {
			query += " AND k > ?"
		}
		args = append(args, it.last)
	}
	if it.opts.Reverse {
		query += " ORDER BY k DESC"
	} else {
		query += " ORDER BY k ASC"
	}
	query += fmt.Sprintf(" LIMIT %d", sqlitePageSize)

	rows, err := it.store.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query page: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	page := make([]sqlitePair, 0, sqlitePageSize)
	for rows.Next() {
		var p sqlitePair
		if err := rows.Scan(&p.key, &p.value); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		page = append(page, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}

	it.page = page
	it.pos = 0
	if len(page) < sqlitePageSize {
		it.done = true
	}
	return nil
}

func (it *sqliteIterator) Key() []byte {
	if it.current == nil {
		return nil
	}
	result := make([]byte, len(it.current.key))
	copy(result, it.current.key)
	return result
}

func (it *sqliteIterator) Value() ([]byte, error) {
	if it.current == nil {
		return nil, ErrIteratorInvalid
	}
	result := make([]byte, len(it.current.value))
	copy(result, it.current.value)
	return result, nil
}

func (it *sqliteIterator) Error() error {
	return it.err
}

func (it *sqliteIterator) Close() error {
	it.closed = true
	it.page = nil
	it.current = nil
	return nil
}
