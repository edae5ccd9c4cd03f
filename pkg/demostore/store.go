// Package demostore keeps recorded demonstrations in a SQLite database.
package demostore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/gwillem/demoreplay/pkg/trajectory"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "demos.db"

// ErrNotFound is returned when no demo matches the lookup.
var ErrNotFound = errors.New("demostore: demo not found")

const schema = `
CREATE TABLE IF NOT EXISTS demos (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	hz         INTEGER NOT NULL,
	steps      INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	recording  TEXT NOT NULL
);
`

// Demo is a stored recording plus its metadata. Recording is nil in results
// from List.
type Demo struct {
	ID        string
	Name      string
	Hz        int
	Steps     int
	CreatedAt time.Time
	Recording *trajectory.Recording
}

// Store manages demos in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put validates and stores a recording under a new ID. Names are unique.
func (s *Store) Put(rec *trajectory.Recording) (Demo, error) {
	if err := rec.Validate(); err != nil {
		return Demo{}, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return Demo{}, fmt.Errorf("marshal recording: %w", err)
	}

	demo := Demo{
		ID:        uuid.New().String(),
		Name:      rec.Name,
		Hz:        rec.Hz,
		Steps:     rec.Len(),
		CreatedAt: time.Now().UTC(),
		Recording: rec,
	}
	_, err = s.db.Exec(
		`INSERT INTO demos (id, name, hz, steps, created_at, recording) VALUES (?, ?, ?, ?, ?, ?)`,
		demo.ID, demo.Name, demo.Hz, demo.Steps, demo.CreatedAt.Format(time.RFC3339Nano), string(data),
	)
	if err != nil {
		return Demo{}, fmt.Errorf("insert demo %q: %w", rec.Name, err)
	}
	return demo, nil
}

// Get returns the demo with the given ID.
func (s *Store) Get(id string) (Demo, error) {
	return s.getOne(`SELECT id, name, hz, steps, created_at, recording FROM demos WHERE id = ?`, id)
}

// GetByName returns the demo with the given name.
func (s *Store) GetByName(name string) (Demo, error) {
	return s.getOne(`SELECT id, name, hz, steps, created_at, recording FROM demos WHERE name = ?`, name)
}

func (s *Store) getOne(query, arg string) (Demo, error) {
	var (
		d         Demo
		createdAt string
		data      string
	)
	err := s.db.QueryRow(query, arg).Scan(&d.ID, &d.Name, &d.Hz, &d.Steps, &createdAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return Demo{}, fmt.Errorf("%w: %s", ErrNotFound, arg)
	}
	if err != nil {
		return Demo{}, fmt.Errorf("query demo: %w", err)
	}
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return Demo{}, fmt.Errorf("parse created_at: %w", err)
	}
	var rec trajectory.Recording
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return Demo{}, fmt.Errorf("parse recording: %w", err)
	}
	d.Recording = &rec
	return d, nil
}

// List returns all demos, oldest first, without their recordings.
func (s *Store) List() ([]Demo, error) {
	rows, err := s.db.Query(`SELECT id, name, hz, steps, created_at FROM demos ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("list demos: %w", err)
	}
	defer rows.Close()

	var demos []Demo
	for rows.Next() {
		var (
			d         Demo
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Hz, &d.Steps, &createdAt); err != nil {
			return nil, fmt.Errorf("scan demo: %w", err)
		}
		if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		demos = append(demos, d)
	}
	return demos, rows.Err()
}

// Delete removes the demo with the given ID.
func (s *Store) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM demos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete demo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete demo: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
