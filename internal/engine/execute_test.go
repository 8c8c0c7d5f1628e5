package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/moon/internal/value"
)

func TestExecute_Sequence(t *testing.T) {
	e, _ := newTestEngine(t)

	got, err := e.Execute(context.Background(), value.Seq(s("mul"), s("4"), s("2.5")))
	require.NoError(t, err)
	assert.Equal(t, s("10"), got)
}

func TestExecute_TrailingPartial(t *testing.T) {
	e, _ := newTestEngine(t)

	got, err := e.Execute(context.Background(), value.Seq(s("add"), s("1")))
	require.NoError(t, err)
	assert.Equal(t, s(`add<:>["1"]`), got)
}

func TestExecute_RecordRoutesToAtom(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Insert(ctx, "routes", "double", s(`mul<:>["2"]`))
	require.NoError(t, err)

	got, err := e.Execute(ctx, value.Seq(s("routes"), s("double"), s("21")))
	require.NoError(t, err)
	assert.Equal(t, s("42"), got)
}

func TestExecute_ObjectMidwayIsInvalid(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Execute(context.Background(), value.Seq(s("split"), s("a,b"), s(","), s("x")))
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidArgument, CodeOf(err))
}

func TestExecute_CallString(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	got, err := e.Execute(ctx, s(`add<:>["1","1"]`))
	require.NoError(t, err)
	assert.Equal(t, s("2"), got)

	_, err = e.Execute(ctx, s(`add<:>["1"]`))
	assert.Equal(t, ErrCodeIncompleteCall, CodeOf(err))

	_, err = e.Execute(ctx, s(`add<:>["1","2","3"]`))
	assert.Equal(t, ErrCodeMalformedEncoding, CodeOf(err))

	_, err = e.Execute(ctx, s("users"))
	assert.True(t, IsUnknownCall(err))

	_, err = e.Execute(ctx, s(`add<:>[`))
	assert.True(t, IsMalformed(err))
}

func TestExecute_SingleElementSequence(t *testing.T) {
	e, _ := newTestEngine(t)

	got, err := e.Execute(context.Background(), value.Seq(s(`eq<:>["a","a"]`)))
	require.NoError(t, err)
	assert.Equal(t, s("true"), got)
}

func TestExecute_RejectsBadShapes(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	for name, expr := range map[string]value.Value{
		"empty":        value.Seq(),
		"not sequence": value.Object{"a": s("add")},
		"object head":  value.Seq(value.Seq(), s("1")),
		"null":         value.Null{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := e.Execute(ctx, expr)
			assert.Equal(t, ErrCodeInvalidArgument, CodeOf(err))
		})
	}
}

func TestFor_RunsEachExpressionReturnsLast(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	body := value.Seq(
		value.Seq(s("add"), s("1"), s("1")),
		s(`mul<:>["3","3"]`),
	)
	got, err := e.Match(ctx, "for", body)
	require.NoError(t, err)
	assert.Equal(t, s("9"), got)
}

func TestFor_Empty(t *testing.T) {
	e, _ := newTestEngine(t)

	got, err := e.Match(context.Background(), "for", value.Seq())
	require.NoError(t, err)
	assert.Equal(t, value.Null{}, got)
}

func TestFor_PropagatesRuntimeError(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Match(context.Background(), "for", value.Seq(s("add")))
	require.Error(t, err)
	assert.Equal(t, ErrCodeIncompleteCall, CodeOf(err))
}

func TestFor_Nested(t *testing.T) {
	e, _ := newTestEngine(t)

	inner := value.Seq(s("for"), value.Seq(value.Seq(s("minus"), s("10"), s("4"))))
	got, err := e.Match(context.Background(), "for", value.Seq(inner))
	require.NoError(t, err)
	assert.Equal(t, s("6"), got)
}

func TestFor_CanceledContext(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Match(ctx, "for", value.Seq(value.Seq(s("add"), s("1"), s("1"))))
	require.ErrorIs(t, err, context.Canceled)
}
