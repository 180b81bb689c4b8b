// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package journal persists ambient and backlight readings to SQLite so
// recent calibration history survives daemon restarts and can be
// inspected over the control socket.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Reading kinds stored in the journal.
const (
	// KindAmbient is a compensated ambient brightness sample.
	KindAmbient = "ambient"
	// KindBacklight is an applied backlight level.
	KindBacklight = "backlight"
)

// Entry is one journalled reading.
type Entry struct {
	// At is when the reading was taken.
	At time.Time `json:"at"`

	// Kind is KindAmbient or KindBacklight.
	Kind string `json:"kind"`

	// Value is the reading in [0, 1].
	Value float64 `json:"value"`

	// Power is the power source name at the time of the reading.
	Power string `json:"power"`

	// Daytime is the effective daytime bucket at the time of the reading.
	Daytime string `json:"daytime"`
}

// Store is a SQLite-backed journal of readings.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal database at path and runs
// migrations. Use ":memory:" for an in-memory database in tests.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	connStr := path
	if path != ":memory:" {
		// Enable WAL mode and busy timeout for better concurrency.
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// A single writer plus the occasional reader is all the daemon
	// needs. An in-memory database exists per connection, so it must
	// stay on exactly one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(2)
	}
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal database: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			kind TEXT NOT NULL,
			value REAL NOT NULL,
			power TEXT NOT NULL,
			daytime TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_at ON readings(at)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_kind ON readings(kind, at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Insert stores one reading.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	if e.Kind != KindAmbient && e.Kind != KindBacklight {
		return fmt.Errorf("unknown reading kind %q", e.Kind)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO readings (at, kind, value, power, daytime) VALUES (?, ?, ?, ?, ?)`,
		e.At.UnixNano(), e.Kind, e.Value, e.Power, e.Daytime,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}

	return nil
}

// Recent returns the most recent readings, newest first. A kind of ""
// returns readings of every kind.
func (s *Store) Recent(ctx context.Context, kind string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT at, kind, value, power, daytime FROM readings`
	args := []any{}

	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}

	query += ` ORDER BY at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&at, &e.Kind, &e.Value, &e.Power, &e.Daytime); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		e.At = time.Unix(0, at)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// DeleteOlderThan deletes readings taken before the given time and
// returns the number of readings deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM readings WHERE at < ?`,
		before.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old readings: %w", err)
	}

	count, _ := result.RowsAffected()
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
