package journal

import (
	"context"
	"fmt"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/ir"
)

// Recorder adapts a Journal to engine.Recorder.
type Recorder struct {
	j   *Journal
	ctx context.Context
}

// NewRecorder returns a recorder appending to j. Writes run under ctx.
func NewRecorder(ctx context.Context, j *Journal) *Recorder {
	return &Recorder{j: j, ctx: ctx}
}

// Record implements engine.Recorder.
func (r *Recorder) Record(ev engine.TraceEvent) error {
	detail := ir.IRObject{}
	if len(ev.Detail) > 0 {
		v, err := ir.FromGo(ev.Detail)
		if err != nil {
			return fmt.Errorf("event %d detail: %w", ev.Seq, err)
		}
		detail = v.(ir.IRObject)
	}
	return r.j.Append(r.ctx, Event{
		Seq:      ev.Seq,
		Batch:    ev.Batch,
		Kind:     string(ev.Kind),
		Type:     ev.Slot.Key.Type,
		RecordID: ev.Slot.Key.ID,
		Field:    ev.Slot.Field,
		Detail:   detail,
	})
}

// Resume returns an engine clock continuing after the journal's last event,
// so a second run can append to the same journal without seq collisions.
func Resume(ctx context.Context, j *Journal) (*engine.Clock, error) {
	last, err := j.LastSeq(ctx)
	if err != nil {
		return nil, err
	}
	return engine.NewClockAt(last), nil
}

// Meta keys written by Stamp.
const (
	MetaSchemaHash    = "schema_hash"
	MetaIRVersion     = "ir_version"
	MetaEngineVersion = "engine_version"
)

// Stamp records which schema and engine produced the journal's events.
// Later runs overwrite the stamp.
func Stamp(ctx context.Context, j *Journal, schemaHash string) error {
	for _, kv := range [][2]string{
		{MetaSchemaHash, schemaHash},
		{MetaIRVersion, ir.IRVersion},
		{MetaEngineVersion, ir.EngineVersion},
	} {
		if err := j.SetMeta(ctx, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// Stamps reads the values written by Stamp. Missing keys are omitted.
func Stamps(ctx context.Context, j *Journal) (map[string]string, error) {
	out := map[string]string{}
	for _, key := range []string{MetaSchemaHash, MetaIRVersion, MetaEngineVersion} {
		v, err := j.Meta(ctx, key)
		if err != nil {
			return nil, err
		}
		if v != "" {
			out[key] = v
		}
	}
	return out, nil
}
