package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/supportlens/pkg/supportlens/aggregate"
	"github.com/cognicore/supportlens/pkg/supportlens/internalerr"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
	"github.com/cognicore/supportlens/pkg/supportlens/store"
)

// timeLayout is fixed-width so created_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	pattern_version TEXT
);

CREATE TABLE IF NOT EXISTS run_records (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	entity TEXT,
	tag TEXT NOT NULL,
	text TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_buckets (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	tag TEXT NOT NULL,
	faq_json TEXT NOT NULL,
	keywords_json TEXT NOT NULL,
	summary_json TEXT,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS run_inquiries (
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	conversation_id TEXT NOT NULL,
	text TEXT NOT NULL,
	tier TEXT NOT NULL,
	PRIMARY KEY(run_id, seq),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_run_records_tag ON run_records(run_id, tag);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// SaveRun writes a run and all of its rows in one transaction
func (s *sqliteStore) SaveRun(ctx context.Context, r store.Run) error {
	if r.ID == "" {
		return fmt.Errorf("%w: run id is required", internalerr.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, r.ID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%w: run %s", internalerr.ErrDuplicate, r.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs(id, created_at, pattern_version) VALUES(?, ?, ?)`,
		r.ID, r.CreatedAt.UTC().Format(timeLayout), r.PatternVersion,
	); err != nil {
		return err
	}
	if err := insertRecords(ctx, tx, r.ID, r.Records); err != nil {
		return err
	}
	if err := insertBuckets(ctx, tx, r.ID, r.Buckets); err != nil {
		return err
	}
	if err := insertInquiries(ctx, tx, r.ID, r.Inquiries); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRecords(ctx context.Context, tx *sql.Tx, runID string, recs []records.Record) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_records(run_id, seq, entity, tag, text, conversation_id) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, rec := range recs {
		if _, err := stmt.ExecContext(ctx, runID, i, rec.Entity, rec.Tag, rec.Text, rec.ConversationID); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return nil
}

func insertBuckets(ctx context.Context, tx *sql.Tx, runID string, buckets []aggregate.Bucket) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_buckets(run_id, seq, tag, faq_json, keywords_json, summary_json) VALUES(?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, b := range buckets {
		faq, err := json.Marshal(b.FAQ)
		if err != nil {
			return err
		}
		kw, err := json.Marshal(b.Keywords)
		if err != nil {
			return err
		}
		var summary sql.NullString
		if b.Summary != nil {
			data, err := json.Marshal(b.Summary)
			if err != nil {
				return err
			}
			summary = sql.NullString{String: string(data), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, i, b.Tag, string(faq), string(kw), summary); err != nil {
			return fmt.Errorf("insert bucket %q: %w", b.Tag, err)
		}
	}
	return nil
}

func insertInquiries(ctx context.Context, tx *sql.Tx, runID string, inqs []store.Inquiry) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_inquiries(run_id, seq, conversation_id, text, tier) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, inq := range inqs {
		if _, err := stmt.ExecContext(ctx, runID, i, inq.ConversationID, inq.Text, inq.Tier); err != nil {
			return fmt.Errorf("insert inquiry %d: %w", i, err)
		}
	}
	return nil
}

// GetRun loads a run with all of its rows
func (s *sqliteStore) GetRun(ctx context.Context, id string) (store.Run, error) {
	var (
		r       store.Run
		created string
		version sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, pattern_version FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &created, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("%w: run %s", internalerr.ErrNotFound, id)
	}
	if err != nil {
		return store.Run{}, err
	}
	if r.CreatedAt, err = parseCreated(created); err != nil {
		return store.Run{}, fmt.Errorf("run %s: %w", id, err)
	}
	r.PatternVersion = version.String

	if r.Records, err = s.loadRecords(ctx, id); err != nil {
		return store.Run{}, err
	}
	if r.Buckets, err = s.loadBuckets(ctx, id); err != nil {
		return store.Run{}, err
	}
	if r.Inquiries, err = s.loadInquiries(ctx, id); err != nil {
		return store.Run{}, err
	}
	return r, nil
}

// LatestRun loads the newest run
func (s *sqliteStore) LatestRun(ctx context.Context) (store.Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("%w: no runs", internalerr.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}
	return s.GetRun(ctx, id)
}

// ListRuns returns run headers, newest first
func (s *sqliteStore) ListRuns(ctx context.Context, limit int) ([]store.RunInfo, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT r.id, r.created_at, r.pattern_version,
	(SELECT COUNT(*) FROM run_records WHERE run_id = r.id),
	(SELECT COUNT(*) FROM run_buckets WHERE run_id = r.id)
FROM runs r
ORDER BY r.created_at DESC, r.id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RunInfo
	for rows.Next() {
		var (
			info    store.RunInfo
			created string
			version sql.NullString
		)
		if err := rows.Scan(&info.ID, &created, &version, &info.Records, &info.Tags); err != nil {
			return nil, err
		}
		if info.CreatedAt, err = parseCreated(created); err != nil {
			return nil, fmt.Errorf("run %s: %w", info.ID, err)
		}
		info.PatternVersion = version.String
		out = append(out, info)
	}
	return out, rows.Err()
}

func parseCreated(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode created_at %q: %w", v, err)
	}
	return t, nil
}

func (s *sqliteStore) loadRecords(ctx context.Context, runID string) ([]records.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity, tag, text, conversation_id FROM run_records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []records.Record
	for rows.Next() {
		var (
			rec    records.Record
			entity sql.NullString
		)
		if err := rows.Scan(&entity, &rec.Tag, &rec.Text, &rec.ConversationID); err != nil {
			return nil, err
		}
		rec.Entity = entity.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadBuckets(ctx context.Context, runID string) ([]aggregate.Bucket, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tag, faq_json, keywords_json, summary_json FROM run_buckets WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []aggregate.Bucket
	for rows.Next() {
		var (
			b           aggregate.Bucket
			faq, kw     string
			summaryJSON sql.NullString
		)
		if err := rows.Scan(&b.Tag, &faq, &kw, &summaryJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(faq), &b.FAQ); err != nil {
			return nil, fmt.Errorf("decode faq of %q: %w", b.Tag, err)
		}
		if err := json.Unmarshal([]byte(kw), &b.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords of %q: %w", b.Tag, err)
		}
		if summaryJSON.Valid {
			var sum aggregate.Summary
			if err := json.Unmarshal([]byte(summaryJSON.String), &sum); err != nil {
				return nil, fmt.Errorf("decode summary of %q: %w", b.Tag, err)
			}
			b.Summary = &sum
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *sqliteStore) loadInquiries(ctx context.Context, runID string) ([]store.Inquiry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, text, tier FROM run_inquiries WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Inquiry
	for rows.Next() {
		var inq store.Inquiry
		if err := rows.Scan(&inq.ConversationID, &inq.Text, &inq.Tier); err != nil {
			return nil, err
		}
		out = append(out, inq)
	}
	return out, rows.Err()
}
