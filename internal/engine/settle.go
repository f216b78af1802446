package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/derive/internal/record"
)

// WatchFunc receives the new value of a watched derived property.
type WatchFunc func(rec *record.Record, value any) error

type watcher struct {
	id int
	fn WatchFunc
}

// SettleReport summarizes one Settle call.
type SettleReport struct {
	Batch      string
	Steps      int
	Recomputed []Slot
	Notified   []Slot
}

// Watch calls fn during Settle whenever rec's derived property name has been
// invalidated. The property is computed once up front so that its
// subscriptions exist. The returned function removes the watcher.
//
// fn may mutate the store; the work that causes is drained by the same
// Settle, within its step quota.
func (e *Engine) Watch(rec *record.Record, name string, fn WatchFunc) (func(), error) {
	if _, err := e.Derive(rec, name); err != nil {
		return nil, err
	}
	slot := SlotOf(rec, name)
	e.nextWID++
	id := e.nextWID
	e.watchers[slot] = append(e.watchers[slot], &watcher{id: id, fn: fn})

	return func() {
		e.watchers[slot] = slices.DeleteFunc(e.watchers[slot], func(w *watcher) bool {
			return w.id == id
		})
		if len(e.watchers[slot]) == 0 {
			delete(e.watchers, slot)
		}
	}, nil
}

// Settle drains queued work: eager recomputation of dirty nodes, then the
// watch callbacks of invalidated properties, in FIFO order. Work scheduled
// by callbacks is drained too. Each item counts against the step quota;
// exceeding it discards the rest of the queue and returns
// StepsExceededError.
//
// ctx is checked once before draining starts. Compute and watcher failures
// do not stop the drain; they are joined into the returned error.
//
// Settle closes the current batch. The next mutation opens a new one.
func (e *Engine) Settle(ctx context.Context) (SettleReport, error) {
	if err := ctx.Err(); err != nil {
		return SettleReport{}, err
	}

	batch := e.currentBatch()
	report := SettleReport{Batch: batch}
	quota := NewQuotaEnforcer(e.maxSteps)
	var errs []error

	for {
		w, ok := e.queue.TryDequeue()
		if !ok {
			break
		}
		if err := quota.Check(batch); err != nil {
			dropped := e.queue.Len()
			e.queue.Clear()
			e.logger.Error("settle quota exceeded", "batch", batch, "limit", quota.MaxSteps(), "dropped", dropped)
			errs = append(errs, err)
			break
		}

		n, ok := e.nodes[w.slot]
		if !ok {
			continue
		}
		switch w.kind {
		case workRecompute:
			if n.state == StateCached {
				continue
			}
			if _, err := e.Derive(n.rec, n.slot.Field); err != nil {
				errs = append(errs, err)
				continue
			}
			report.Recomputed = append(report.Recomputed, w.slot)
		case workWatch:
			if err := e.deliver(n); err != nil {
				errs = append(errs, err)
			}
			report.Notified = append(report.Notified, w.slot)
		}
	}

	report.Steps = quota.Current()
	e.record(EventSettled, Slot{}, map[string]any{
		"steps":      report.Steps,
		"recomputed": slotStrings(report.Recomputed),
		"notified":   slotStrings(report.Notified),
	})
	e.logger.Debug("settled", "batch", batch, "steps", report.Steps,
		"recomputed", len(report.Recomputed), "notified", len(report.Notified))
	e.batch = ""

	return report, errors.Join(errs...)
}

func (e *Engine) deliver(n *node) error {
	value, err := e.Derive(n.rec, n.slot.Field)
	if err != nil {
		return err
	}
	e.record(EventWatch, n.slot, map[string]any{"value": describe(value)})

	var errs []error
	for _, w := range slices.Clone(e.watchers[n.slot]) {
		if err := w.fn(n.rec, value); err != nil {
			e.logger.Error("watcher failed", "slot", n.slot.String(), "error", err)
			errs = append(errs, fmt.Errorf("watch %s: %w", n.slot, err))
		}
	}
	return errors.Join(errs...)
}
