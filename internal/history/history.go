// Package history persists the engine's transition log to SQLite so an
// operator can reconstruct what the reconciler did and when.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ucscslugworks/bambu-printer-automations/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Log is a durable transition log. SQLite with WAL mode; a single
// writer connection avoids SQLITE_BUSY under the engine's write rate.
type Log struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the transition log at the given path. Pragmas
// and schema are applied on every open; the call is idempotent.
func Open(path string, logger *slog.Logger) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect history db: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &Log{db: db, log: logger}, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Record implements engine.Recorder. A failed insert is logged and
// dropped; the transition log never blocks or fails a cycle.
func (l *Log) Record(ctx context.Context, tr engine.Transition) {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO transitions (cycle, kind, key, from_state, to_state, detail, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.Cycle, tr.Kind, tr.Key, tr.From, tr.To, tr.Detail,
		tr.At.UTC().Format(time.RFC3339),
	)
	if err != nil {
		l.log.Error("history insert failed",
			"kind", tr.Kind, "key", tr.Key, "error", err)
	}
}

// Recent returns the most recent transitions, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]engine.Transition, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT cycle, kind, key, from_state, to_state, detail, at
		 FROM transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []engine.Transition
	for rows.Next() {
		var tr engine.Transition
		var at string
		if err := rows.Scan(&tr.Cycle, &tr.Kind, &tr.Key, &tr.From, &tr.To, &tr.Detail, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.At, err = time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("parse transition time %q: %w", at, err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}
