package journal

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/derive/internal/ir"
)

// Event is one journaled row.
type Event struct {
	Seq      int64
	Batch    string
	Kind     string
	Type     string
	RecordID string
	Field    string
	Detail   ir.IRObject
}

// Slot renders the event's subject as "type:id.field", "type:id" or "".
func (e Event) Slot() string {
	switch {
	case e.Type == "" && e.RecordID == "":
		return ""
	case e.Field == "":
		return e.Type + ":" + e.RecordID
	default:
		return e.Type + ":" + e.RecordID + "." + e.Field
	}
}

// BatchSummary describes one batch in the journal.
type BatchSummary struct {
	Batch    string
	FirstSeq int64
	LastSeq  int64
	Events   int
}

// Append writes an event. Rows are keyed by seq; writing the same seq
// again is a no-op, which keeps appends idempotent.
func (j *Journal) Append(ctx context.Context, ev Event) error {
	detail, err := marshalDetail(ev.Detail)
	if err != nil {
		return fmt.Errorf("append event %d: %w", ev.Seq, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO events (seq, batch, kind, type, record_id, field, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, ev.Seq, ev.Batch, ev.Kind, ev.Type, ev.RecordID, ev.Field, detail)
	if err != nil {
		return fmt.Errorf("append event %d: %w", ev.Seq, err)
	}
	return nil
}

// ReadAll returns every event ordered by seq.
// Returns an empty slice (not nil) for an empty journal.
func (j *Journal) ReadAll(ctx context.Context) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, batch, kind, type, record_id, field, detail
		FROM events
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

// ReadBatch returns the events of one batch ordered by seq.
// Returns an empty slice (not nil) for an unknown batch.
func (j *Journal) ReadBatch(ctx context.Context, batch string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, batch, kind, type, record_id, field, detail
		FROM events
		WHERE batch = ?
		ORDER BY seq ASC
	`, batch)
	if err != nil {
		return nil, fmt.Errorf("query batch %s: %w", batch, err)
	}
	return scanEvents(rows)
}

// Batches lists batches in the order they were opened.
func (j *Journal) Batches(ctx context.Context) ([]BatchSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT batch, MIN(seq), MAX(seq), COUNT(*)
		FROM events
		GROUP BY batch
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	out := []BatchSummary{}
	for rows.Next() {
		var b BatchSummary
		if err := rows.Scan(&b.Batch, &b.FirstSeq, &b.LastSeq, &b.Events); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return out, nil
}

// LastSeq returns the highest seq written, or 0 for an empty journal.
// Engines appending to an existing journal resume their clock from it.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		var detail string
		if err := rows.Scan(&ev.Seq, &ev.Batch, &ev.Kind, &ev.Type, &ev.RecordID, &ev.Field, &detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		obj, err := unmarshalDetail(detail)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", ev.Seq, err)
		}
		ev.Detail = obj
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// marshalDetail converts the detail object to canonical JSON TEXT.
func marshalDetail(detail ir.IRObject) (string, error) {
	if detail == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}

// unmarshalDetail parses detail TEXT. Integers are decoded exactly.
func unmarshalDetail(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("unmarshal detail: want object, got %T", v)
	}
	return obj, nil
}
