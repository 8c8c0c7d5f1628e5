package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/moon/internal/value"
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
			outcome := event.Error
			if outcome == "" {
				outcome = render(event.Result)
			}
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s\n", event.Step, event.Op, render(event.Input), outcome)
		}
	}

	return buf.String()
}

// assertTraceContains checks if some successful step of the given op
// produced the expected result. With no result, any successful step of
// that op satisfies it.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	var want value.Value
	if assertion.Result != nil {
		v, err := value.FromAny(assertion.Result)
		if err != nil {
			return fmt.Errorf("trace_contains: invalid result: %w", err)
		}
		want = v
	}

	for _, event := range trace {
		if event.Op != assertion.Op || event.Error != "" {
			continue
		}
		if want == nil || value.Equal(want, event.Result) {
			return nil
		}
	}

	expected := "successful " + assertion.Op
	if want != nil {
		expected = fmt.Sprintf("%s with result %s", assertion.Op, render(want))
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed); each
// listed op must occur after the occurrence matched for the one before it.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, op := range assertion.Ops {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.Op == op {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual:   fmt.Sprintf("no %s after the preceding ops", op),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the op ran exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks a record, or a whole collection, in the state
// snapshot taken after the last step.
func assertFinalState(state value.Object, assertion Assertion) error {
	target := assertion.Collection
	if assertion.ID != "" {
		target += "/" + assertion.ID
	}

	var actual value.Value
	if coll, ok := state[assertion.Collection].(value.Object); ok {
		actual = coll
		if assertion.ID != "" {
			actual = nil
			if v, ok := coll[assertion.ID]; ok {
				actual = v
			}
		}
	}

	if assertion.Absent {
		if actual != nil {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: target + " absent",
				Actual:   render(actual),
			}
		}
		return nil
	}

	want, err := value.FromAny(assertion.Expect)
	if err != nil {
		return fmt.Errorf("final_state: invalid expect: %w", err)
	}
	if actual == nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", target, render(want)),
			Actual:   "not found",
		}
	}
	if !value.Equal(want, actual) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s = %s", target, render(want)),
			Actual:   render(actual),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
