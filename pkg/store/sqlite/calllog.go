// Package sqlite implements the call-history store on an embedded SQLite
// database for single-device use.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/otherjamesbrown/recents/pkg/logging"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `
	CREATE TABLE IF NOT EXISTS call_log (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		number           TEXT,
		cached_name      TEXT,
		cached_photo_uri TEXT,
		date_ms          INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0,
		call_type        INTEGER NOT NULL,
		account_id       TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_call_log_date_ms ON call_log (date_ms DESC);
`

const selectColumns = "id, number, cached_name, cached_photo_uri, date_ms, duration_seconds, call_type, account_id"

// CallLog is a recents.RecordSource over a SQLite file.
type CallLog struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string, logger logging.Logger) (*CallLog, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &CallLog{db: db, logger: logger.With(logging.Component("sqlite_call_log"))}, nil
}

// Close closes the database.
func (s *CallLog) Close() error {
	return s.db.Close()
}

// Ping checks the database is usable.
func (s *CallLog) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func buildQuery(q recents.RecordQuery) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT " + selectColumns + " FROM call_log")

	var args []any
	if q.BeforeMs != nil {
		b.WriteString(" WHERE date_ms < ?")
		args = append(args, *q.BeforeMs)
	}
	if q.Descending {
		b.WriteString(" ORDER BY date_ms DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY date_ms ASC, id ASC")
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}

// Query returns the records selected by q.
func (s *CallLog) Query(ctx context.Context, q recents.RecordQuery) ([]recents.RawRecord, error) {
	query, args := buildQuery(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying call log: %w", err)
	}
	defer rows.Close()

	var records []recents.RawRecord
	for rows.Next() {
		var rec recents.RawRecord
		if err := rows.Scan(
			&rec.ID, &rec.Number, &rec.CachedName, &rec.CachedPhotoURI,
			&rec.TimestampMs, &rec.DurationSeconds, &rec.Type, &rec.AccountID,
		); err != nil {
			return nil, fmt.Errorf("scanning call log row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating call log: %w", err)
	}
	return records, nil
}

// Delete removes the records with the given ids in one statement.
func (s *CallLog) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM call_log WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("deleting %d call log records: %w", len(ids), err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug("Deleted call log records", logging.F("requested", len(ids)), logging.F("deleted", n))
	}
	return nil
}

// DeleteAll empties the call log.
func (s *CallLog) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM call_log"); err != nil {
		return fmt.Errorf("clearing call log: %w", err)
	}
	return nil
}

// InsertBatch writes records in one transaction, preserving their order.
func (s *CallLog) InsertBatch(ctx context.Context, records []recents.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback() // nolint: errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO call_log (number, cached_name, cached_photo_uri, date_ms, duration_seconds, call_type, account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.Number, r.CachedName, r.CachedPhotoURI,
			r.TimestampMs, r.DurationSeconds, int(r.Type), r.AccountID,
		); err != nil {
			return fmt.Errorf("inserting call log record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

var _ recents.RecordSource = (*CallLog)(nil)
