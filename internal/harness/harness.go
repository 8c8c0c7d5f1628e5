package harness


import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/moon/internal/cipher"
	"github.com/roach88/moon/internal/engine"
	"github.com/roach88/moon/internal/store"
	"github.com/roach88/moon/internal/testutil"
	"github.com/roach88/moon/internal/value"
)

// errorWithoutCode is the trace error for failures that carry no
// RuntimeError code, such as cipher and storage failures.
const errorWithoutCode = "ERROR"

// Harness is the test execution engine.
// It runs one scenario against a fresh store with a seeded cipher.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger

	// prev is the last step's result, Null until a step succeeds.
	prev value.Value
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh SQLite database for isolation.
// Execution flow:
// 1. Create fresh database in a temporary directory
// 2. Insert setup records
// 3. Execute steps with expect validation
// 4. Snapshot final store contents
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "moon-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "scenario.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	box, err := scenarioBox(scenario.Name)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store:  st,
		engine: engine.New(st, engine.WithCipher(box), engine.WithLogger(logger)),
		logger: logger,
		prev:   value.Null{},
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}

	state, err := h.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot state: %w", err)
	}
	result.State = state

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// scenarioBox returns a cipher with the fixed test key and randomness
// seeded from the scenario name, so ciphertexts repeat across runs.
func scenarioBox(name string) (*cipher.Box, error) {
	box, err := cipher.NewBox(nil, testutil.FixedPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario cipher: %w", err)
	}
	return box.WithRandom(testutil.NewDeterministicReader(name)), nil
}

// executeSetup inserts setup records directly into the store.
func (h *Harness) executeSetup(ctx context.Context, setup []SetupRecord) error {
	for i, rec := range setup {
		v, err := value.FromAny(rec.Value)
		if err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if err := h.store.Upsert(ctx, rec.Collection, rec.ID, v); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	return nil
}

// executeStep runs one step, records it in the trace and checks its
// expect clause. Failures are recorded; later steps still run.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	ev := TraceEvent{Step: index, Op: step.Op()}

	out, err := h.dispatch(ctx, step, &ev)
	if err != nil {
		ev.Error = errorCode(err)
		h.prev = value.Null{}
	} else {
		ev.Result = out
		h.prev = out
	}
	result.addTrace(ev)

	if msg := checkExpect(index, step.Expect, out, err); msg != "" {
		result.AddError(msg)
	}
}

// dispatch fills ev.Input and runs the step's operation.
func (h *Harness) dispatch(ctx context.Context, step Step, ev *TraceEvent) (value.Value, error) {
	switch {
	case step.Match != nil:
		left := step.Match.Left
		if left == PrevRef {
			left = value.Text(h.prev)
		}
		right, err := h.operand(step.Match.Right)
		if err != nil {
			ev.Input = value.Object{"left": value.String(left)}
			return nil, err
		}
		ev.Input = value.Object{"left": value.String(left), "right": right}
		return h.engine.Match(ctx, left, right)

	case step.Exec != nil:
		expr, err := value.FromAny(step.Exec)
		if err != nil {
			ev.Input = value.Object{}
			return nil, err
		}
		ev.Input = value.Object{"expr": expr}
		return h.engine.Execute(ctx, expr)

	case step.Insert != nil:
		v, err := value.FromAny(step.Insert.Value)
		if err != nil {
			ev.Input = value.Object{}
			return nil, err
		}
		ev.Input = value.Object{
			"collection": value.String(step.Insert.Collection),
			"id":         value.String(step.Insert.ID),
			"value":      v,
		}
		name, err := h.engine.Insert(ctx, step.Insert.Collection, step.Insert.ID, v)
		return stringResult(name, err)

	case step.Delete != nil:
		ev.Input = value.Object{
			"collection": value.String(step.Delete.Collection),
			"id":         value.String(step.Delete.ID),
		}
		id, err := h.engine.Delete(ctx, step.Delete.Collection, step.Delete.ID)
		return stringResult(id, err)

	case step.Remove != "":
		ev.Input = value.Object{"collection": value.String(step.Remove)}
		name, err := h.engine.Remove(ctx, step.Remove)
		return stringResult(name, err)

	case step.Watch != "":
		ev.Input = value.Object{"key": value.String(step.Watch)}
		return h.engine.Watch(ctx, step.Watch)
	}
	return nil, fmt.Errorf("step has no operation")
}

// operand converts a scenario right operand, substituting PrevRef.
func (h *Harness) operand(raw any) (value.Value, error) {
	if s, ok := raw.(string); ok && s == PrevRef {
		return h.prev, nil
	}
	return value.FromAny(raw)
}

// errorCode returns err's RuntimeError code, or errorWithoutCode.
func errorCode(err error) string {
	if code := engine.CodeOf(err); code != "" {
		return string(code)
	}
	return errorWithoutCode
}

func stringResult(s string, err error) (value.Value, error) {
	if err != nil {
		return nil, err
	}
	return value.String(s), nil
}

// checkExpect compares a step outcome with its expect clause and returns
// an error message, or "" if the outcome is acceptable.
func checkExpect(index int, expect *ExpectClause, out value.Value, err error) string {
	if expect == nil {
		if err != nil {
			return fmt.Sprintf("step %d: unexpected error: %v", index, err)
		}
		return ""
	}

	if expect.Error != "" {
		if err == nil {
			return fmt.Sprintf("step %d: expected error %s, got result %s", index, expect.Error, render(out))
		}
		if got := errorCode(err); got != expect.Error {
			return fmt.Sprintf("step %d: expected error %s, got %v", index, expect.Error, err)
		}
		return ""
	}

	if err != nil {
		return fmt.Sprintf("step %d: expected result, got error: %v", index, err)
	}
	want, convErr := value.FromAny(expect.Value)
	if convErr != nil {
		return fmt.Sprintf("step %d: invalid expected value: %v", index, convErr)
	}
	if !value.Equal(want, out) {
		return fmt.Sprintf("step %d: expected %s, got %s", index, render(want), render(out))
	}
	return ""
}

// snapshot reads every collection into {collection: {id: value}}.
func (h *Harness) snapshot(ctx context.Context) (value.Object, error) {
	names, err := h.store.Collections(ctx)
	if err != nil {
		return nil, err
	}
	state := make(value.Object, len(names))
	for _, name := range names {
		records, err := h.store.All(ctx, name)
		if err != nil {
			return nil, err
		}
		coll := make(value.Object, len(records))
		for _, rec := range records {
			coll[rec.ID] = rec.Value
		}
		state[name] = coll
	}
	return state, nil
}

// render formats v for error messages.
func render(v value.Value) string {
	data, err := value.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(data)
}
