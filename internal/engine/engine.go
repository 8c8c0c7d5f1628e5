package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/moon/internal/atom"
	"github.com/roach88/moon/internal/call"
	"github.com/roach88/moon/internal/store"
	"github.com/roach88/moon/internal/value"
)

// Storage is the record store behind the storage fallback and the
// insert/delete/remove/watch operations. *store.Store implements it.
type Storage interface {
	Upsert(ctx context.Context, collection, id string, v value.Value) error
	Delete(ctx context.Context, collection, id string) error
	Drop(ctx context.Context, collection string) error
	Collections(ctx context.Context) ([]string, error)

	// Get returns store.ErrCollectionNotFound when the collection does
	// not exist and found=false when only the record is missing.
	Get(ctx context.Context, collection, id string) (v value.Value, found bool, err error)
	All(ctx context.Context, collection string) ([]store.Record, error)
}

// Match outcomes reported to a Recorder.
const (
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeResolved = "resolved"
	OutcomeError    = "error"
)

// Recorder receives dispatch and storage observations. Implemented by
// metrics.Metrics.
type Recorder interface {
	ObserveMatch(outcome string)
	ObserveStore(op string, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMatch(string)       {}
func (nopRecorder) ObserveStore(string, error) {}

// Engine dispatches call expressions against an atom registry with a
// storage fallback.
//
// Thread-safety model:
//   - All methods are safe from any goroutine
//   - Engine fields are never written after New returns
type Engine struct {
	storage  Storage
	registry *atom.Registry
	cipher   atom.Cipher
	recorder Recorder
	logger   *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithRegistry replaces the built-in atom registry.
func WithRegistry(r *atom.Registry) EngineOption {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithCipher sets the cipher used by the encrypt and decrypt atoms.
// Without one both atoms fail with atom.ErrNoCipher.
func WithCipher(c atom.Cipher) EngineOption {
	return func(e *Engine) {
		e.cipher = c
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over the given storage.
func New(s Storage, opts ...EngineOption) *Engine {
	e := &Engine{
		storage:  s,
		registry: atom.Builtins(),
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the atom registry in use.
func (e *Engine) Registry() *atom.Registry {
	return e.registry
}

// Cipher implements atom.Env.
func (e *Engine) Cipher() atom.Cipher {
	return e.cipher
}

// Match performs one dispatch step and returns what a remote caller sees:
// the finished value, or the encoded partial call string.
func (e *Engine) Match(ctx context.Context, left string, right value.Value) (value.Value, error) {
	res, err := e.Step(ctx, left, right)
	if err != nil {
		return nil, err
	}
	return res.Wire(), nil
}

// Step performs one dispatch step:
//
//  1. Decode left into a call (MALFORMED_ENCODING on failure)
//  2. No atom with that name: resolve right in the collection named left
//  3. Otherwise bind right; evaluate when the atom has all its arguments,
//     else return the partial call
func (e *Engine) Step(ctx context.Context, left string, right value.Value) (call.Result, error) {
	res, outcome, err := e.step(ctx, left, right)
	if err != nil {
		outcome = OutcomeError
	}
	e.recorder.ObserveMatch(outcome)
	e.logger.Debug("match",
		"left", left,
		"outcome", outcome,
		"error", err,
	)
	return res, err
}

func (e *Engine) step(ctx context.Context, left string, right value.Value) (call.Result, string, error) {
	c, err := call.Decode(left)
	if err != nil {
		return call.Result{}, "", NewMalformedError(left, err)
	}

	a, ok := e.registry.Lookup(c.Name)
	if !ok {
		v, err := e.Resolve(ctx, c.Name, value.Text(right))
		if err != nil {
			return call.Result{}, "", err
		}
		return call.Complete(v), OutcomeResolved, nil
	}

	if len(c.Args) >= a.Arity {
		return call.Result{}, "", newOverboundError(c.Name, len(c.Args), a.Arity)
	}

	full := c.Bind(right)
	switch {
	case len(full.Args) > a.Arity:
		panic(fmt.Sprintf("engine: arity assertion: %q bound %d args, arity %d", c.Name, len(full.Args), a.Arity))
	case len(full.Args) < a.Arity:
		return call.Partial(full), OutcomePartial, nil
	}

	v, err := e.eval(ctx, a, full.Args)
	if err != nil {
		return call.Result{}, "", err
	}
	return call.Complete(v), OutcomeComplete, nil
}

// eval runs an atom with exactly a.Arity arguments.
func (e *Engine) eval(ctx context.Context, a atom.Atom, args []value.Value) (value.Value, error) {
	v, err := a.Eval(ctx, e, args)
	if err == nil {
		return v, nil
	}
	var re *RuntimeError
	if !errors.As(err, &re) && errors.Is(err, atom.ErrArgumentType) {
		return nil, NewInvalidArgumentError(a.Name, "atom rejected its arguments", err)
	}
	return nil, fmt.Errorf("%s: %w", a.Name, err)
}

// Execute runs a fully specified expression. It implements atom.Env and
// backs the for atom, the exec command and the /exec route.
//
// An expression is either a call string whose bound arguments already
// fill its atom, or a sequence [head, arg1, ..., argN]. A sequence is
// folded left to right through Match: each step's result becomes the next
// left operand, so
//
//	["add", "2", "3"]              -> "5"
//	["routes", "home", "7"]        -> Match(record routes/home, "7")
//
// An intermediate result that is an object cannot be a left operand and
// fails with INVALID_ARGUMENT.
func (e *Engine) Execute(ctx context.Context, expr value.Value) (value.Value, error) {
	switch x := expr.(type) {
	case value.String:
		return e.executeCall(ctx, string(x))
	case value.Object:
		items, err := x.Items()
		if err != nil {
			return nil, NewInvalidArgumentError("", "expression must be a sequence", err)
		}
		if len(items) == 0 {
			return nil, NewInvalidArgumentError("", "expression is empty", nil)
		}
		head, ok := items[0].(value.String)
		if !ok {
			return nil, NewInvalidArgumentError("", "expression head must be a string", nil)
		}
		if len(items) == 1 {
			return e.executeCall(ctx, string(head))
		}
		return e.fold(ctx, string(head), items[1:])
	default:
		return nil, NewInvalidArgumentError("", fmt.Sprintf("cannot execute %T", expr), nil)
	}
}

func (e *Engine) fold(ctx context.Context, left string, args []value.Value) (value.Value, error) {
	for i, arg := range args {
		res, err := e.Step(ctx, left, arg)
		if err != nil {
			return nil, err
		}
		if i == len(args)-1 {
			return res.Wire(), nil
		}
		next, ok := res.Wire().(value.String)
		if !ok {
			return nil, NewInvalidArgumentError(left,
				fmt.Sprintf("step %d produced an object, %d arguments left", i+1, len(args)-i-1), nil)
		}
		left = string(next)
	}
	panic("unreachable")
}

// executeCall evaluates a call string that must not need more arguments.
func (e *Engine) executeCall(ctx context.Context, s string) (value.Value, error) {
	c, err := call.Decode(s)
	if err != nil {
		return nil, NewMalformedError(s, err)
	}
	a, ok := e.registry.Lookup(c.Name)
	if !ok {
		return nil, NewUnknownCallError(c.Name, nil)
	}
	switch {
	case len(c.Args) < a.Arity:
		return nil, NewIncompleteCallError(c.Name, len(c.Args), a.Arity)
	case len(c.Args) > a.Arity:
		return nil, newOverboundError(c.Name, len(c.Args), a.Arity)
	}

	v, err := e.eval(ctx, a, c.Args)
	if err != nil {
		e.recorder.ObserveMatch(OutcomeError)
		return nil, err
	}
	e.recorder.ObserveMatch(OutcomeComplete)
	return v, nil
}
