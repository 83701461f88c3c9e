// Package catalog keeps a queryable index of the colonies of every world
// next to the authoritative artifacts.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one colony as seen by a selection screen.
type Record struct {
	WorldID   string
	ColonyID  int
	Name      string
	Leader    string
	Tiles     int
	Status    string
	LastWrite time.Time
}

// timeLayout is fixed width so last_write sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteCatalog struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteCatalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteCatalog{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS colonies (
			world_id TEXT NOT NULL,
			colony_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			leader TEXT NOT NULL,
			tiles INTEGER NOT NULL,
			status TEXT NOT NULL,
			last_write TEXT NOT NULL,
			PRIMARY KEY (world_id, colony_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_colonies_last_write ON colonies(world_id, last_write);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLiteCatalog) Upsert(ctx context.Context, r Record) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO colonies (world_id, colony_id, name, leader, tiles, status, last_write)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(world_id, colony_id) DO UPDATE SET
			name=excluded.name,
			leader=excluded.leader,
			tiles=excluded.tiles,
			status=excluded.status,
			last_write=excluded.last_write`,
		r.WorldID, r.ColonyID, r.Name, r.Leader, r.Tiles, r.Status, r.LastWrite.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upserting colony %d: %w", r.ColonyID, err)
	}
	return nil
}

func (c *SQLiteCatalog) Delete(ctx context.Context, worldID string, colonyID int) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM colonies WHERE world_id=? AND colony_id=?`, worldID, colonyID)
	if err != nil {
		return fmt.Errorf("deleting colony %d: %w", colonyID, err)
	}
	return nil
}

// List returns the colonies of a world, most recently written first.
func (c *SQLiteCatalog) List(ctx context.Context, worldID string) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT colony_id, name, leader, tiles, status, last_write FROM colonies
		WHERE world_id=? ORDER BY last_write DESC, colony_id ASC`, worldID)
	if err != nil {
		return nil, fmt.Errorf("listing colonies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		r := Record{WorldID: worldID}
		var lastWrite string
		if err := rows.Scan(&r.ColonyID, &r.Name, &r.Leader, &r.Tiles, &r.Status, &lastWrite); err != nil {
			return nil, fmt.Errorf("scanning colony: %w", err)
		}
		r.LastWrite, err = time.Parse(timeLayout, lastWrite)
		if err != nil {
			return nil, fmt.Errorf("parsing last write of colony %d: %w", r.ColonyID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
