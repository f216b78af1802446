package harness

import "github.com/roach88/derive/internal/ir"

// TraceEvent is one journaled engine event, as read back after a run.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Batch string `json:"batch"`
	Kind  string `json:"kind"`
	Slot  string `json:"slot,omitempty"`
}

// Check is the outcome of one expect step.
type Check struct {
	Step   int        `json:"step"`
	Record string     `json:"record"`
	Path   string     `json:"path"`
	Want   ir.IRValue `json:"want,omitempty"`
	Got    ir.IRValue `json:"got,omitempty"`
	// Err is the read error, when the step expected or hit one.
	Err  string `json:"error,omitempty"`
	Pass bool   `json:"pass"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step, check and assertion succeeded.
	Pass bool `json:"pass"`

	// Checks holds one entry per expect step, in step order.
	Checks []Check `json:"checks"`

	// Trace contains every journaled engine event of the run, in sequence
	// order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Diagnostics contains stale-read warnings raised during the run.
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Checks: []Check{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCheck records an expect outcome. A failing check fails the result.
func (r *Result) AddCheck(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Pass {
		r.Pass = false
	}
}
