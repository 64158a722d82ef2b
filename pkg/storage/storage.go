package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sw33tLie/archerlookup/pkg/archer"
	_ "modernc.org/sqlite"
)

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS lookups (
  id            INTEGER PRIMARY KEY,
  looked_up_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  entity_value  TEXT NOT NULL,
  entity_type   TEXT NOT NULL,
  hit_count     INTEGER NOT NULL DEFAULT 0,
  summary       TEXT,
  details       TEXT
);
CREATE INDEX IF NOT EXISTS idx_lookups_value ON lookups(entity_value, looked_up_at);
CREATE INDEX IF NOT EXISTS idx_lookups_time ON lookups(looked_up_at);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// RecordLookups stores one row per result of a bulk lookup in a single
// transaction. Results without data are stored with zero hits.
func (d *DB) RecordLookups(ctx context.Context, results []archer.LookupResult) (err error) {
	if len(results) == 0 {
		return nil
	}
	now := time.Now().UTC()

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO lookups(looked_up_at, entity_value, entity_type, hit_count, summary, details) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range results {
		var summary, details interface{}
		if r.Data != nil {
			b, merr := json.Marshal(r.Data.Summary)
			if merr != nil {
				return merr
			}
			summary = string(b)
			if len(r.Data.Details) > 0 {
				details = string(r.Data.Details)
			}
		}
		typ := r.Entity.Type
		if _, err = stmt.ExecContext(ctx, now, NormalizeValue(r.Entity.Value, typ), typ, r.HitCount(), summary, details); err != nil {
			return fmt.Errorf("could not record lookup of %s: %w", r.Entity.Value, err)
		}
	}

	return tx.Commit()
}

// ListHistory returns stored lookups matching filters, newest first.
func (d *DB) ListHistory(ctx context.Context, opts ListOptions) ([]HistoryEntry, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Value != "" {
		where += " AND entity_value = ?"
		args = append(args, NormalizeValue(opts.Value, opts.Type))
	}
	if opts.Type != "" {
		where += " AND entity_type = ?"
		args = append(args, opts.Type)
	}
	if opts.OnlyHits {
		where += " AND hit_count > 0"
	}
	if !opts.Since.IsZero() {
		where += " AND looked_up_at >= ?"
		args = append(args, opts.Since.UTC())
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	q := "SELECT id, looked_up_at, entity_value, entity_type, hit_count, summary, details FROM lookups " + where + " ORDER BY looked_up_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryEntry{}
	for rows.Next() {
		var e HistoryEntry
		var summaryNS, detailsNS sql.NullString
		if err := rows.Scan(&e.ID, &e.LookedUpAt, &e.Value, &e.Type, &e.Hits, &summaryNS, &detailsNS); err != nil {
			return nil, err
		}
		if summaryNS.Valid {
			if err := json.Unmarshal([]byte(summaryNS.String), &e.Summary); err != nil {
				return nil, fmt.Errorf("corrupt summary in lookup %d: %w", e.ID, err)
			}
		}
		if detailsNS.Valid {
			e.Details = json.RawMessage(detailsNS.String)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *DB) GetStats(ctx context.Context) ([]TypeStats, error) {
	query := `
		SELECT
			entity_type,
			COUNT(*),
			COUNT(DISTINCT entity_value),
			SUM(CASE WHEN hit_count > 0 THEN 1 ELSE 0 END)
		FROM
			lookups
		GROUP BY
			entity_type
		ORDER BY
			entity_type;
	`
	rows, err := d.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []TypeStats
	for rows.Next() {
		var s TypeStats
		if err := rows.Scan(&s.Type, &s.Lookups, &s.Entities, &s.Hits); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
