// Package postgres implements the call-history store and the general contact
// directory on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/otherjamesbrown/recents/pkg/logging"
	"github.com/otherjamesbrown/recents/pkg/recents"
)

// DB is the subset of *pgxpool.Pool the stores use.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
}

const callLogTable = "call_log"

var callLogColumns = []string{
	"id", "number", "cached_name", "cached_photo_uri",
	"date_ms", "duration_seconds", "call_type", "account_id",
}

// insertColumns are written by InsertBatch; id is assigned by the database.
var insertColumns = callLogColumns[1:]

// CallLog is a recents.RecordSource over the call_log table.
type CallLog struct {
	db     DB
	logger logging.Logger
}

// NewCallLog creates a call log store.
func NewCallLog(db DB, logger logging.Logger) *CallLog {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CallLog{db: db, logger: logger.With(logging.Component("postgres_call_log"))}
}

// buildQuery renders a RecordQuery as SQL.
func buildQuery(q recents.RecordQuery) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(callLogColumns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(callLogTable)

	var args []any
	if q.BeforeMs != nil {
		args = append(args, *q.BeforeMs)
		fmt.Fprintf(&b, " WHERE date_ms < $%d", len(args))
	}

	if q.Descending {
		b.WriteString(" ORDER BY date_ms DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY date_ms ASC, id ASC")
	}

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

// Query returns the records selected by q.
func (s *CallLog) Query(ctx context.Context, q recents.RecordQuery) ([]recents.RawRecord, error) {
	sql, args := buildQuery(q)
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying call log: %w", err)
	}
	defer rows.Close()

	var records []recents.RawRecord
	for rows.Next() {
		var (
			rec      recents.RawRecord
			callType int16
		)
		if err := rows.Scan(
			&rec.ID, &rec.Number, &rec.CachedName, &rec.CachedPhotoURI,
			&rec.TimestampMs, &rec.DurationSeconds, &callType, &rec.AccountID,
		); err != nil {
			return nil, fmt.Errorf("scanning call log row: %w", err)
		}
		rec.Type = recents.CallType(callType)
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
	tag, err := s.db.Exec(ctx, "DELETE FROM call_log WHERE id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("deleting %d call log records: %w", len(ids), err)
	}
	s.logger.Debug("Deleted call log records",
		logging.F("requested", len(ids)), logging.F("deleted", tag.RowsAffected()))
	return nil
}

// DeleteAll empties the call log.
func (s *CallLog) DeleteAll(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM call_log"); err != nil {
		return fmt.Errorf("clearing call log: %w", err)
	}
	return nil
}

// InsertBatch writes records in one COPY, preserving their order.
func (s *CallLog) InsertBatch(ctx context.Context, records []recents.RawRecord) error {
	if len(records) == 0 {
		return nil
	}
	src := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return insertRow(records[i]), nil
	})
	n, err := s.db.CopyFrom(ctx, pgx.Identifier{callLogTable}, insertColumns, src)
	if err != nil {
		return fmt.Errorf("inserting %d call log records: %w", len(records), err)
	}
	if n != int64(len(records)) {
		return fmt.Errorf("inserted %d of %d call log records", n, len(records))
	}
	return nil
}

func insertRow(r recents.RawRecord) []any {
	return []any{
		r.Number, r.CachedName, r.CachedPhotoURI,
		r.TimestampMs, int32(r.DurationSeconds), int16(r.Type), r.AccountID,
	}
}

var _ recents.RecordSource = (*CallLog)(nil)
