package fixture

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/testmain/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
// 2 - Added revisions.author
const currentSchemaVersion = 2

// DBName is the database file inside a repository directory.
const DBName = "repos.db"

// ErrNoSuchRevision is returned for revisions newer than the youngest.
var ErrNoSuchRevision = errors.New("no such revision")

// Repos is a scratch repository backed by SQLite. Revision 0 is the empty
// tree; every later revision stores a full snapshot.
type Repos struct {
	db   *sql.DB
	dir  string
	opts *config.Options
}

// CreateRepos creates a repository in dir for the configured backend. If
// opts names a repository template, its database is copied in first.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func CreateRepos(ctx context.Context, opts *config.Options, dir string) (*Repos, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create repository directory: %w", err)
	}

	path := filepath.Join(dir, DBName)
	if opts.ReposTemplate != "" {
		if err := copyFile(filepath.Join(opts.ReposTemplate, DBName), path); err != nil {
			return nil, fmt.Errorf("copy repository template: %w", err)
		}
	}

	r, err := openRepos(ctx, path, dir, opts)
	if err != nil {
		return nil, err
	}

	if err := r.init(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// OpenRepos opens an existing repository created by CreateRepos.
func OpenRepos(ctx context.Context, opts *config.Options, dir string) (*Repos, error) {
	path := filepath.Join(dir, DBName)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return openRepos(ctx, path, dir, opts)
}

func openRepos(ctx context.Context, path, dir string, opts *config.Options) (*Repos, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Repos{db: db, dir: dir, opts: opts}, nil
}

// init records the backend and creates revision 0 unless the repository
// already has history (copied from a template).
func (r *Repos) init(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		"fs_type": r.opts.FSType,
		"format":  strconv.Itoa(r.opts.MinorVersion()),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, k, v); err != nil {
			return fmt.Errorf("init repository: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (rev, log) VALUES (0, '')
		ON CONFLICT(rev) DO NOTHING
	`); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}

	return tx.Commit()
}

// Close closes the database connection.
func (r *Repos) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Dir returns the repository directory.
func (r *Repos) Dir() string { return r.dir }

// URL returns the repository's URL: below the configured repository URL when
// one is set, a file URL otherwise.
func (r *Repos) URL() string {
	if r.opts.ReposURL != "" {
		return r.opts.ReposURL + "/" + filepath.Base(r.dir)
	}
	return "file://" + filepath.ToSlash(r.dir)
}

// Meta returns a metadata value such as "fs_type" or "format".
func (r *Repos) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("read meta %q: %w", key, err)
	}
	return value, nil
}

// Youngest returns the newest revision number.
func (r *Repos) Youngest(ctx context.Context) (int, error) {
	var rev int
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(rev) FROM revisions`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("youngest revision: %w", err)
	}
	return rev, nil
}

// Import commits tree as a new revision and returns its number.
func (r *Repos) Import(ctx context.Context, tree Tree, author, log string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	defer tx.Rollback()

	var rev int
	if err := tx.QueryRowContext(ctx, `SELECT MAX(rev) + 1 FROM revisions`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO revisions (rev, log, author) VALUES (?, ?, ?)
	`, rev, log, author); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes (rev, path, kind, contents) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	defer stmt.Close()

	for _, e := range tree {
		kind, contents := "file", sql.NullString{}
		if e.IsDir() {
			kind = "dir"
		} else {
			contents = sql.NullString{String: *e.Contents, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rev, e.Path, kind, contents); err != nil {
			return 0, fmt.Errorf("import %s: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	return rev, nil
}

// Tree returns the snapshot stored at rev, in the order it was imported.
func (r *Repos) Tree(ctx context.Context, rev int) (Tree, error) {
	youngest, err := r.Youngest(ctx)
	if err != nil {
		return nil, err
	}
	if rev < 0 || rev > youngest {
		return nil, fmt.Errorf("revision %d: %w", rev, ErrNoSuchRevision)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT path, kind, contents FROM nodes WHERE rev = ? ORDER BY rowid
	`, rev)
	if err != nil {
		return nil, fmt.Errorf("read revision %d: %w", rev, err)
	}
	defer rows.Close()

	var tree Tree
	for rows.Next() {
		var (
			path, kind string
			contents   sql.NullString
		)
		if err := rows.Scan(&path, &kind, &contents); err != nil {
			return nil, fmt.Errorf("read revision %d: %w", rev, err)
		}
		e := TreeEntry{Path: path}
		if kind == "file" {
			s := contents.String
			e.Contents = &s
		}
		tree = append(tree, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read revision %d: %w", rev, err)
	}
	return tree, nil
}

// Author returns the author of rev.
func (r *Repos) Author(ctx context.Context, rev int) (string, error) {
	var author string
	err := r.db.QueryRowContext(ctx, `SELECT author FROM revisions WHERE rev = ?`, rev).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("revision %d: %w", rev, ErrNoSuchRevision)
	}
	if err != nil {
		return "", fmt.Errorf("read author of r%d: %w", rev, err)
	}
	return author, nil
}

// Checkout writes the tree of rev into dir.
func (r *Repos) Checkout(ctx context.Context, rev int, dir string) error {
	tree, err := r.Tree(ctx, rev)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	if err := tree.Materialize(dir); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// A version 1 database has revisions without the author column, and
	// CREATE TABLE IF NOT EXISTS would leave it that way.
	if version == 1 {
		if _, err := db.ExecContext(ctx,
			`ALTER TABLE revisions ADD COLUMN author TEXT NOT NULL DEFAULT ''`); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
