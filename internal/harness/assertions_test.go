package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/moon/internal/value"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Step: 0, Op: OpInsert, Input: value.Object{}, Result: value.String("users")},
		{Step: 1, Op: OpMatch, Input: value.Object{}, Result: value.String("alice")},
		{Step: 2, Op: OpMatch, Input: value.Object{}, Error: "UNKNOWN_CALL"},
		{Step: 3, Op: OpRemove, Input: value.Object{}, Result: value.String("users")},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpMatch, Result: "alice"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Op: OpRemove}))

	err := assertTraceContains(trace, Assertion{Op: OpMatch, Result: "bob"})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Contains(t, err.Error(), `match with result "bob"`)
	assert.Contains(t, err.Error(), "[2] match {} -> UNKNOWN_CALL")

	assert.Error(t, assertTraceContains(trace, Assertion{Op: OpWatch}))
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpInsert, OpRemove}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Ops: []string{OpMatch, OpMatch}}))

	err := assertTraceOrder(trace, Assertion{Ops: []string{OpRemove, OpInsert}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no insert after the preceding ops")

	assert.Error(t, assertTraceOrder(trace, Assertion{Ops: []string{OpMatch, OpMatch, OpMatch}}))
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpMatch, Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Op: OpWatch, Count: 0}))

	err := assertTraceCount(trace, Assertion{Op: OpMatch, Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 occurrences of match")
}

func TestAssertFinalState(t *testing.T) {
	state := value.Object{
		"users": value.Object{"1": value.String("alice"), "?": value.String("guest")},
	}

	assert.NoError(t, assertFinalState(state, Assertion{Collection: "users", ID: "1", Expect: "alice"}))
	assert.NoError(t, assertFinalState(state, Assertion{
		Collection: "users",
		Expect:     map[string]any{"1": "alice", "?": "guest"},
	}))
	assert.NoError(t, assertFinalState(state, Assertion{Collection: "users", ID: "2", Absent: true}))
	assert.NoError(t, assertFinalState(state, Assertion{Collection: "ghosts", Absent: true}))

	err := assertFinalState(state, Assertion{Collection: "users", ID: "1", Expect: "bob"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `users/1 = "bob"`)

	err = assertFinalState(state, Assertion{Collection: "users", ID: "2", Expect: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = assertFinalState(state, Assertion{Collection: "users", Absent: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "users absent")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Op: OpMatch, Count: 2},
		{Type: AssertTraceCount, Op: OpMatch, Count: 5},
		{Type: "bogus"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "trace_count")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
