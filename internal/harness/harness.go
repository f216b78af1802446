package harness

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/derive/internal/engine"
	"github.com/roach88/derive/internal/ir"
	"github.com/roach88/derive/internal/journal"
	"github.com/roach88/derive/internal/messaging"
	"github.com/roach88/derive/internal/record"
	"github.com/roach88/derive/internal/testutil"
)

// Option configures a scenario run.
type Option func(*runConfig)

type runConfig struct {
	journal *journal.Journal
	logger  *slog.Logger
	policy  string
}

// WithJournal records the run into j instead of a private in-memory
// journal. Sequence numbers continue after j's last event.
func WithJournal(j *journal.Journal) Option {
	return func(c *runConfig) {
		c.journal = j
	}
}

// WithLogger sets the logger handed to the engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPolicy overrides the scenario's policy ("lazy" or "eager").
func WithPolicy(policy string) Option {
	return func(c *runConfig) {
		c.policy = policy
	}
}

// Harness executes one scenario against a fresh store and engine.
type Harness struct {
	store  *record.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each run gets a fresh store and engine. Record ids come from a "gen"
// sequence and batch tokens from a "<scenario>/batch" sequence, so the same
// scenario always produces the same trace.
//
// Execution flow:
// 1. Resolve the bundle and policy, open the journal
// 2. Build the store and engine
// 3. Execute steps, recording a check per expect step
// 4. Read the journaled trace and evaluate assertions
//
// Step failures are recorded in the result. The returned error is reserved
// for setup problems such as an unknown bundle or an unreadable journal.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context for journal access and
// settling.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	bundle, err := LookupBundle(cmp.Or(scenario.Bundle, messaging.Name))
	if err != nil {
		return nil, err
	}
	policy, err := engine.ParsePolicy(cmp.Or(cfg.policy, scenario.Policy))
	if err != nil {
		return nil, err
	}

	j := cfg.journal
	if j == nil {
		j, err = journal.Open(journal.MemoryPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open in-memory journal: %w", err)
		}
		defer j.Close()
	}
	clock, err := journal.Resume(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("failed to resume journal: %w", err)
	}
	start := clock.Current()

	ids := testutil.NewSequence("gen")
	engineOpts := []engine.EngineOption{
		engine.WithPolicy(policy),
		engine.WithLogger(cfg.logger),
		engine.WithRecorder(journal.NewRecorder(ctx, j)),
		engine.WithBatchGenerator(testutil.NewSequence(scenario.Name + "/batch")),
		engine.WithClock(clock),
	}
	if scenario.MaxSteps > 0 {
		engineOpts = append(engineOpts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	eng, err := bundle.NewEngine([]record.Option{record.WithIDGenerator(ids.Next)}, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}

	if err := journal.Stamp(ctx, j, eng.Store().Schema().Hash()); err != nil {
		return nil, fmt.Errorf("failed to stamp journal: %w", err)
	}

	h := &Harness{store: eng.Store(), engine: eng, logger: cfg.logger}
	result := NewResult()
	for i := range scenario.Steps {
		h.executeStep(ctx, i, &scenario.Steps[i], result)
	}

	for _, w := range eng.Diagnostics() {
		result.Diagnostics = append(result.Diagnostics, w.Error())
	}

	events, err := j.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, ev := range events {
		if ev.Seq <= start {
			continue
		}
		result.Trace = append(result.Trace, TraceEvent{
			Seq:   ev.Seq,
			Batch: ev.Batch,
			Kind:  ev.Kind,
			Slot:  ev.Slot(),
		})
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"checks", len(result.Checks),
		"events", len(result.Trace),
	)
	return result, nil
}

// executeStep runs one step. A failure that the step declared through its
// error field is a pass; any other failure is recorded as an error.
func (h *Harness) executeStep(ctx context.Context, i int, step *Step, result *Result) {
	if step.Expect != nil {
		result.AddCheck(h.check(i, step))
		return
	}

	action, err := h.apply(ctx, step)
	switch {
	case step.Error == "" && err != nil:
		result.AddError(fmt.Sprintf("step %d (%s): %v", i, action, err))
	case step.Error != "" && err == nil:
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got none", i, action, step.Error))
	case step.Error != "" && !strings.Contains(err.Error(), step.Error):
		result.AddError(fmt.Sprintf("step %d (%s): expected error containing %q, got %v", i, action, step.Error, err))
	}

	h.logger.Debug("step completed", "step", i, "action", action, "error", err)
}

// apply performs a mutating step and names it for messages.
func (h *Harness) apply(ctx context.Context, step *Step) (string, error) {
	switch {
	case step.Create != nil:
		c := step.Create
		fields := maps.Clone(c.Fields)
		if c.ID != "" {
			if fields == nil {
				fields = map[string]any{}
			}
			fields["id"] = c.ID
		}
		_, err := h.store.Create(c.Type, fields)
		return "create " + c.Type, err

	case step.Set != nil:
		rec, err := h.find(step.Set.RecordRef)
		if err != nil {
			return "set", err
		}
		return "set " + step.Set.String() + "." + step.Set.Field, h.store.Set(rec, step.Set.Field, step.Set.Value)

	case step.Add != nil:
		rec, err := h.find(step.Add.RecordRef)
		if err != nil {
			return "add", err
		}
		return "add " + step.Add.String() + "." + step.Add.Field, h.store.AddTo(rec, step.Add.Field, step.Add.Member)

	case step.Remove != nil:
		rec, err := h.find(step.Remove.RecordRef)
		if err != nil {
			return "remove", err
		}
		return "remove " + step.Remove.String() + "." + step.Remove.Field, h.store.RemoveFrom(rec, step.Remove.Field, step.Remove.Member)

	case step.Delete != nil:
		rec, err := h.find(*step.Delete)
		if err != nil {
			return "delete", err
		}
		return "delete " + step.Delete.String(), h.store.Delete(rec)

	case step.Settle:
		_, err := h.engine.Settle(ctx)
		return "settle", err
	}
	return "empty", fmt.Errorf("step has no action")
}

func (h *Harness) find(ref RecordRef) (*record.Record, error) {
	return h.store.Find(ref.Type, ref.ID)
}

// check reads an expect step's path and compares it with the expected
// value by canonical JSON.
func (h *Harness) check(i int, step *Step) Check {
	exp := step.Expect
	c := Check{Step: i, Record: exp.String(), Path: exp.Path}

	got, err := h.read(exp)
	if err != nil {
		c.Err = err.Error()
		c.Pass = step.Error != "" && strings.Contains(c.Err, step.Error)
		return c
	}
	c.Got = got
	if step.Error != "" {
		c.Err = fmt.Sprintf("expected error containing %q, got none", step.Error)
		return c
	}

	want, err := ir.FromGo(exp.Equals)
	if err != nil {
		c.Err = fmt.Sprintf("equals: %v", err)
		return c
	}
	c.Want = want
	c.Pass = sameValue(want, got)
	return c
}

func (h *Harness) read(exp *ExpectStep) (ir.IRValue, error) {
	rec, err := h.find(exp.RecordRef)
	if err != nil {
		return nil, err
	}
	v, err := h.engine.Get(rec, exp.Path)
	if err != nil {
		return nil, err
	}
	return Normalize(v)
}

// Normalize converts a derived value to IR for comparison and snapshots.
// Records become their ids, record lists and collections become id arrays
// and record maps become id objects.
func Normalize(v any) (ir.IRValue, error) {
	switch val := v.(type) {
	case nil:
		return ir.IRNull{}, nil
	case *record.Record:
		if val == nil {
			return ir.IRNull{}, nil
		}
		return ir.IRString(val.ID()), nil
	case *record.Collection:
		return idArray(val.Records()), nil
	case []*record.Record:
		return idArray(val), nil
	case map[string]*record.Record:
		obj := make(ir.IRObject, len(val))
		for k, r := range val {
			obj[k] = ir.IRString(r.ID())
		}
		return obj, nil
	case []any:
		arr := make(ir.IRArray, len(val))
		for i, item := range val {
			n, err := Normalize(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = n
		}
		return arr, nil
	case map[string]any:
		obj := make(ir.IRObject, len(val))
		for _, k := range slices.Sorted(maps.Keys(val)) {
			n, err := Normalize(val[k])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			obj[k] = n
		}
		return obj, nil
	default:
		return ir.FromGo(v)
	}
}

func idArray(recs []*record.Record) ir.IRArray {
	arr := make(ir.IRArray, len(recs))
	for i, r := range recs {
		arr[i] = ir.IRString(r.ID())
	}
	return arr
}

func sameValue(a, b ir.IRValue) bool {
	aj, err := ir.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bj, err := ir.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return string(aj) == string(bj)
}
