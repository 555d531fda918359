package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/a3tai/mcp-pid-tagger/internal/pid"
)

// MemoryDB opens a private in-memory project database
const MemoryDB = ":memory:"

// ErrProjectNotFound is returned when no project is saved under a name
var ErrProjectNotFound = errors.New("project not found")

// StoreConfig configures the project database
type StoreConfig struct {
	DBPath string
}

// ProjectInfo describes one saved project
type ProjectInfo struct {
	Name          string    `json:"name"`
	Source        string    `json:"source,omitempty"`
	TagCount      int       `json:"tagCount"`
	RelationCount int       `json:"relationshipCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Store keeps project documents in SQLite, one row per project name
type Store struct {
	db     *sql.DB
	dbPath string
}

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	name           TEXT PRIMARY KEY,
	source         TEXT NOT NULL DEFAULT '',
	document       TEXT NOT NULL,
	tag_count      INTEGER NOT NULL DEFAULT 0,
	relation_count INTEGER NOT NULL DEFAULT 0,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
)`

// OpenStore opens (creating if needed) the project database
func OpenStore(cfg StoreConfig) (*Store, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	cfg.DBPath = expandPath(cfg.DBPath)

	if cfg.DBPath != MemoryDB {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.DBPath == MemoryDB {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, dbPath: cfg.DBPath}, nil
}

// Path returns the database path
func (s *Store) Path() string {
	return s.dbPath
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores doc under name, replacing any earlier revision. The document
// is validated first so a broken graph is never persisted.
func (s *Store) Save(ctx context.Context, name, source string, doc pid.Document) (ProjectInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ProjectInfo{}, pid.ValidationError("project name cannot be empty")
	}
	if err := pid.ValidateDocument(doc); err != nil {
		return ProjectInfo{}, err
	}
	data, err := doc.Marshal()
	if err != nil {
		return ProjectInfo{}, err
	}

	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (name, source, document, tag_count, relation_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			source = excluded.source,
			document = excluded.document,
			tag_count = excluded.tag_count,
			relation_count = excluded.relation_count,
			updated_at = excluded.updated_at`,
		name, source, string(data), len(doc.Tags), len(doc.Relationships), stamp, stamp,
	)
	if err != nil {
		return ProjectInfo{}, fmt.Errorf("failed to save project %q: %w", name, err)
	}

	info, err := s.info(ctx, name)
	if err != nil {
		return ProjectInfo{}, err
	}
	return info, nil
}

// Load returns the document saved under name
func (s *Store) Load(ctx context.Context, name string) (pid.Document, ProjectInfo, error) {
	var data string
	var info ProjectInfo
	var created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, source, document, tag_count, relation_count, created_at, updated_at
		FROM projects WHERE name = ?`, name,
	).Scan(&info.Name, &info.Source, &data, &info.TagCount, &info.RelationCount, &created, &updated)
	if err == sql.ErrNoRows {
		return pid.Document{}, ProjectInfo{}, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	if err != nil {
		return pid.Document{}, ProjectInfo{}, fmt.Errorf("failed to load project %q: %w", name, err)
	}
	info.CreatedAt, info.UpdatedAt = parseTime(created), parseTime(updated)

	doc, err := pid.ParseDocument([]byte(data))
	if err != nil {
		return pid.Document{}, ProjectInfo{}, err
	}
	return doc, info, nil
}

// List returns every saved project, most recently updated first
func (s *Store) List(ctx context.Context) ([]ProjectInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, source, tag_count, relation_count, created_at, updated_at
		FROM projects ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []ProjectInfo{}
	for rows.Next() {
		var p ProjectInfo
		var created, updated string
		if err := rows.Scan(&p.Name, &p.Source, &p.TagCount, &p.RelationCount, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		p.CreatedAt, p.UpdatedAt = parseTime(created), parseTime(updated)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Delete removes the project saved under name
func (s *Store) Delete(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete project %q: %w", name, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return nil
}

func (s *Store) info(ctx context.Context, name string) (ProjectInfo, error) {
	var p ProjectInfo
	var created, updated string
	err := s.db.QueryRowContext(ctx, `
		SELECT name, source, tag_count, relation_count, created_at, updated_at
		FROM projects WHERE name = ?`, name,
	).Scan(&p.Name, &p.Source, &p.TagCount, &p.RelationCount, &created, &updated)
	if err != nil {
		return ProjectInfo{}, fmt.Errorf("failed to read project %q: %w", name, err)
	}
	p.CreatedAt, p.UpdatedAt = parseTime(created), parseTime(updated)
	return p, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// expandPath expands a leading ~ to the home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
