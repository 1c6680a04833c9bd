// Package history keeps an sqlite log of reconciliation runs and of every
// freshly checked classification.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"rcsync/internal/domain"
)

type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Policy     string
	Period     string
	Total      int
	Checked    int
	Carried    int
	Failed     int
	Done       int
	NotDone    int
	Unknown    int
}

// Entry is one historical classification of a card.
type Entry struct {
	RunID     string
	CardNo    string
	Status    domain.Status
	Quantity  string
	CheckedAt time.Time
}

type DB struct {
	db *sql.DB
}

func NewRunID() string { return uuid.NewString() }

func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("history: database path required")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id      TEXT PRIMARY KEY,
		started_at  DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		policy      TEXT NOT NULL DEFAULT '',
		period      TEXT NOT NULL DEFAULT '',
		total       INTEGER NOT NULL DEFAULT 0,
		checked     INTEGER NOT NULL DEFAULT 0,
		carried     INTEGER NOT NULL DEFAULT 0,
		done        INTEGER NOT NULL DEFAULT 0,
		not_done    INTEGER NOT NULL DEFAULT 0,
		unknown     INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS classification_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		card_no    TEXT NOT NULL,
		status     TEXT NOT NULL,
		quantity   TEXT DEFAULT '',
		checked_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ch_card_no ON classification_history(card_no);
	CREATE INDEX IF NOT EXISTS idx_ch_run ON classification_history(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	// Migration: add failed column if missing.
	var colCount int
	_ = db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('runs') WHERE name = 'failed'`).Scan(&colCount)
	if colCount == 0 {
		_, _ = db.Exec(`ALTER TABLE runs ADD COLUMN failed INTEGER NOT NULL DEFAULT 0`)
	}

	return &DB{db: db}, nil
}

func (h *DB) Close() error { return h.db.Close() }

// RecordRun stores the run row and one history row per fresh classification
// in a single transaction.
func (h *DB) RecordRun(ctx context.Context, run Run, fresh []domain.Classification) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, finished_at, policy, period, total, checked, carried, failed, done, not_done, unknown)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Policy, run.Period,
		run.Total, run.Checked, run.Carried, run.Failed, run.Done, run.NotDone, run.Unknown,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	if len(fresh) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO classification_history (run_id, card_no, status, quantity, checked_at)
			 VALUES (?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range fresh {
			if _, err := stmt.ExecContext(ctx, run.ID, c.ID, string(c.Status), c.QuantityString(), run.FinishedAt.UTC()); err != nil {
				return fmt.Errorf("inserting history for %s: %w", c.ID, err)
			}
		}
	}
	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first.
func (h *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, policy, period, total, checked, carried, failed, done, not_done, unknown
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.Policy, &r.Period,
			&r.Total, &r.Checked, &r.Carried, &r.Failed, &r.Done, &r.NotDone, &r.Unknown,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// StatusHistory returns every recorded classification of a card, oldest first.
func (h *DB) StatusHistory(ctx context.Context, cardNo string) ([]Entry, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT run_id, card_no, status, quantity, checked_at
		 FROM classification_history WHERE card_no = ? ORDER BY checked_at, id`,
		cardNo,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var status string
		if err := rows.Scan(&e.RunID, &e.CardNo, &status, &e.Quantity, &e.CheckedAt); err != nil {
			return nil, err
		}
		e.Status = domain.Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
