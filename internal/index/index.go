package index

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"orgls/internal/document"

	_ "github.com/mattn/go-sqlite3"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("orgls.index")

//go:embed schema.sql
var schemaSQL string

// Index stores headline records in SQLite so searches do not need the
// documents to be open.
type Index struct {
	db *sql.DB
}

// Open opens (or creates) the database at path, enables WAL mode and
// applies the schema.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error { return ix.db.Close() }

func (ix *Index) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Sync replaces the records of loc with the headlines of doc.
func (ix *Index) Sync(ctx context.Context, loc document.Location, doc *document.Document) error {
	return ix.Put(ctx, loc, Collect(loc, doc))
}

// Put replaces the records of loc.
func (ix *Index) Put(ctx context.Context, loc document.Location, headlines []Headline) error {
	err := ix.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO documents (url, indexed_at) VALUES (?, ?)
            ON CONFLICT(url) DO UPDATE SET indexed_at = excluded.indexed_at
        `, string(loc), time.Now().Unix()); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM headlines WHERE url = ?`, string(loc)); err != nil {
			return err
		}
		for _, h := range headlines {
			data, err := json.Marshal(h)
			if err != nil {
				return err
			}
			lo, hi := bounds(h.Timestamps())
			if _, err := tx.ExecContext(ctx, `
                INSERT OR REPLACE INTO headlines (url, line, min_ts, max_ts, data)
                VALUES (?, ?, ?, ?, ?)
            `, string(loc), h.Line, lo, hi, string(data)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", loc, err)
	}
	log.Debugf("indexed %d headlines of %s", len(headlines), loc)
	return nil
}

// Remove drops the records of loc.
func (ix *Index) Remove(ctx context.Context, loc document.Location) error {
	return ix.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM headlines WHERE url = ?`, string(loc)); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE url = ?`, string(loc))
		return err
	})
}

// Locations returns the indexed documents.
func (ix *Index) Locations(ctx context.Context) ([]document.Location, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT url FROM documents ORDER BY url`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []document.Location
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		locs = append(locs, document.Location(url))
	}
	return locs, rows.Err()
}

// Search returns the records matching q ordered by location and line.
func (ix *Index) Search(ctx context.Context, q Query) ([]Headline, error) {
	var url, from, to any
	if q.URL != nil {
		url = string(*q.URL)
	}
	if q.From != nil {
		from = q.From.Unix()
	}
	if q.To != nil {
		to = q.To.Unix()
	}

	rows, err := ix.db.QueryContext(ctx, `
        SELECT data FROM headlines
        WHERE (?1 IS NULL OR url = ?1)
          AND (?2 IS NULL OR max_ts >= ?2)
          AND (?3 IS NULL OR min_ts <= ?3)
        ORDER BY url, line
    `, url, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	defer rows.Close()

	results := []Headline{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var h Headline
		if err := json.Unmarshal([]byte(data), &h); err != nil {
			return nil, fmt.Errorf("corrupt index record: %w", err)
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

func bounds(ts []time.Time) (lo, hi any) {
	if len(ts) == 0 {
		return nil, nil
	}
	first, last := ts[0].Unix(), ts[0].Unix()
	for _, t := range ts[1:] {
		first = min(first, t.Unix())
		last = max(last, t.Unix())
	}
	return first, last
}
