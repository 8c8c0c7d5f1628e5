package harness

import (
	"strconv"

	"github.com/roach88/moon/internal/value"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	// Step is the zero-based index into Scenario.Steps.
	Step int

	// Op is the step operation (OpMatch, OpExec, ...).
	Op string

	// Input holds the operands after $prev substitution.
	Input value.Object

	// Result is the step's return value. Nil when the step failed.
	Result value.Value

	// Error is the RuntimeError code of a failed step, or "ERROR" for
	// failures that carry no code.
	Error string
}

// toValue renders the event for trace snapshots.
func (e TraceEvent) toValue() value.Object {
	obj := value.Object{
		"step":  value.String(strconv.Itoa(e.Step)),
		"op":    value.String(e.Op),
		"input": e.Input,
	}
	if e.Result != nil {
		obj["result"] = e.Result
	}
	if e.Error != "" {
		obj["error"] = value.String(e.Error)
	}
	return obj
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions hold.
	Pass bool

	// Trace contains every executed step in order.
	Trace []TraceEvent

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string

	// State contains the final store contents keyed by collection, each
	// an object of id to value.
	State value.Object
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  value.Object{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// addTrace appends a step event.
func (r *Result) addTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
