// Package cache keeps converted programs in SQLite, keyed by the digest
// of the project document they came from.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/sbvm/program"
)

var log = commonlog.GetLogger("sbvm.cache")

// ErrNotFound is returned by Get for an unknown digest.
var ErrNotFound = errors.New("cache: program not found")

// Store is a program cache. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the cache database at path. ":memory:" gives a
// private in-memory cache.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: opening database: %w", err)
	}
	if path == ":memory:" {
		// each connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		digest  TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		image   BLOB NOT NULL,
		stored  INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: creating table: %w", err)
	}
	log.Debugf("opened program cache at %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the cached program for d. Entries written by another image
// version are treated as missing.
func (s *Store) Get(ctx context.Context, d program.Digest) (*program.Program, error) {
	var (
		version int
		image   []byte
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT version, image FROM programs WHERE digest = ?", d.String(),
	).Scan(&version, &image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: querying program: %w", err)
	}
	if version != program.ImageVersion {
		log.Infof("ignoring cached program %s with image version %d", d, version)
		return nil, ErrNotFound
	}
	p, err := program.Unmarshal(image)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return p, nil
}

// Put stores p under d, replacing any previous entry.
func (s *Store) Put(ctx context.Context, d program.Digest, p *program.Program) error {
	image, err := program.Marshal(p)
	if err != nil {
		return fmt.Errorf("cache: encoding program: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO programs (digest, version, image, stored) VALUES (?, ?, ?, ?)",
		d.String(), program.ImageVersion, image, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache: saving program: %w", err)
	}
	return nil
}

// Delete removes the entry for d, if any.
func (s *Store) Delete(ctx context.Context, d program.Digest) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM programs WHERE digest = ?", d.String()); err != nil {
		return fmt.Errorf("cache: deleting program: %w", err)
	}
	return nil
}

// Len returns the number of cached programs.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM programs").Scan(&n); err != nil {
		return 0, fmt.Errorf("cache: counting programs: %w", err)
	}
	return n, nil
}
