package call

import "github.com/roach88/moon/internal/value"

// Result is the outcome of one dispatch step: either a finished value or a
// call that still needs arguments.
//
// Only the wire boundary flattens a partial Result into its encoded string
// (see Wire). Inside the process the two cases stay distinct.
type Result struct {
	partial bool
	val     value.Value
	call    Call
}

// Complete wraps a finished value.
func Complete(v value.Value) Result {
	return Result{val: v}
}

// Partial wraps a call that is still accumulating arguments.
func Partial(c Call) Result {
	return Result{partial: true, call: c}
}

// IsPartial reports whether more arguments are needed.
func (r Result) IsPartial() bool {
	return r.partial
}

// Value returns the finished value. Nil for partial results.
func (r Result) Value() value.Value {
	return r.val
}

// Call returns the pending call. Zero for complete results.
func (r Result) Call() Call {
	return r.call
}

// Wire returns the value a remote caller sees: the finished value, or the
// encoded call string for a partial result.
func (r Result) Wire() value.Value {
	if r.partial {
		return value.String(Encode(r.call))
	}
	return r.val
}
