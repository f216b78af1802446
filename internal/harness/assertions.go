package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Seq, event.Batch, event.Kind, event.Slot)
		}
	}

	return buf.String()
}

func (m EventMatch) matches(ev TraceEvent) bool {
	return ev.Kind == m.Kind && (m.Slot == "" || ev.Slot == m.Slot)
}

// assertTraceContains checks that some event matches the assertion's kind
// and slot.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want := EventMatch{Kind: assertion.Kind, Slot: assertion.Slot}
	for _, event := range trace {
		if want.matches(event) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: want.String(),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed events appear in order.
// Events don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Events) {
			break
		}
		if assertion.Events[next].matches(event) {
			next++
		}
	}
	if next == len(assertion.Events) {
		return nil
	}

	expected := make([]string, len(assertion.Events))
	for i, m := range assertion.Events {
		expected[i] = m.String()
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(expected, " -> "),
		Actual:   fmt.Sprintf("%s not found after %d matched events", assertion.Events[next], next),
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count events match.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	want := EventMatch{Kind: assertion.Kind, Slot: assertion.Slot}
	count := 0
	for _, event := range trace {
		if want.matches(event) {
			count++
		}
	}
	if count == assertion.Count {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s exactly %d times", want, assertion.Count),
		Actual:   fmt.Sprintf("found %d times", count),
		Trace:    trace,
	}
}

func assertNoStaleReads(result *Result) error {
	if len(result.Diagnostics) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoStaleReads,
		Expected: "no stale-read diagnostics",
		Actual:   strings.Join(result.Diagnostics, "; "),
	}
}

// EvaluateAssertions runs every assertion against a finished result and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertNoStaleReads:
			err = assertNoStaleReads(result)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}
