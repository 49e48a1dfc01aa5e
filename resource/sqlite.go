package resource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	_ "modernc.org/sqlite"
)

const packSchema = `CREATE TABLE IF NOT EXISTS assets (
	path TEXT PRIMARY KEY,
	data BLOB NOT NULL
)`

// SQLiteSource reads assets from a single-file SQLite asset pack with a
// table assets(path TEXT PRIMARY KEY, data BLOB).
type SQLiteSource struct {
	db   *sql.DB
	stmt *sql.Stmt
}

// OpenSQLite opens the asset pack at dsn. Use "file:pack.db?mode=ro" for a
// read-only pack.
func OpenSQLite(dsn string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open asset pack: %w", err)
	}
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteSource(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSource wraps an open database handle. The assets table must
// exist.
func NewSQLiteSource(db *sql.DB) (*SQLiteSource, error) {
	stmt, err := db.Prepare(`SELECT data FROM assets WHERE path = ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare asset query: %w", err)
	}
	return &SQLiteSource{db: db, stmt: stmt}, nil
}

// ReadFile implements Source.
func (s *SQLiteSource) ReadFile(path string) ([]byte, error) {
	var data []byte
	err := s.stmt.QueryRow(path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, fmt.Errorf("read asset %q: %w", path, err)
	}
	return data, nil
}

// Close releases the prepared statement and the database handle.
func (s *SQLiteSource) Close() error {
	return errors.Join(s.stmt.Close(), s.db.Close())
}

// WritePack copies every regular file of fsys into the assets table of db,
// replacing existing rows. It returns the number of files written.
func WritePack(ctx context.Context, db *sql.DB, fsys fs.FS) (int, error) {
	if _, err := db.ExecContext(ctx, packSchema); err != nil {
		return 0, fmt.Errorf("create assets table: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin pack: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO assets (path, data) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	count := 0
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, Canonical(p), data); err != nil {
			return fmt.Errorf("insert %q: %w", p, err)
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit pack: %w", err)
	}
	return count, nil
}
