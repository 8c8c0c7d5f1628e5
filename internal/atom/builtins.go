package atom

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/roach88/moon/internal/value"
)

var (
	builtinsOnce sync.Once
	builtins     *Registry
)

// Builtins returns the process-wide registry of built-in atoms.
//
//	add minus mul div fact   numeric + - * / %
//	g s ge se                numeric > < >= >=
//	eq ne                    structural equality / inequality
//	split len for rand       sequences and iteration
//	encrypt decrypt          env cipher
//
// fact is a modulo operation despite its name, and se compares with >=
// exactly like ge. Both are kept for compatibility with existing call
// strings and stored records that use them.
func Builtins() *Registry {
	builtinsOnce.Do(func() {
		builtins = NewRegistry(
			arithmetic("add", func(a, b float64) float64 { return a + b }),
			arithmetic("minus", func(a, b float64) float64 { return a - b }),
			arithmetic("mul", func(a, b float64) float64 { return a * b }),
			arithmetic("div", func(a, b float64) float64 { return a / b }),
			arithmetic("fact", math.Mod),

			comparison("g", func(a, b float64) bool { return a > b }),
			comparison("s", func(a, b float64) bool { return a < b }),
			comparison("ge", func(a, b float64) bool { return a >= b }),
			comparison("se", func(a, b float64) bool { return a >= b }),

			Atom{Name: "eq", Arity: 2, Eval: evalEq},
			Atom{Name: "ne", Arity: 2, Eval: evalNe},
			Atom{Name: "split", Arity: 2, Eval: evalSplit},
			Atom{Name: "len", Arity: 1, Eval: evalLen},
			Atom{Name: "for", Arity: 1, Eval: evalFor},
			Atom{Name: "rand", Arity: 1, Eval: evalRand},
			Atom{Name: "encrypt", Arity: 1, Eval: evalEncrypt},
			Atom{Name: "decrypt", Arity: 1, Eval: evalDecrypt},
		)
	})
	return builtins
}

// arithmetic builds a binary numeric atom. Operands are parsed like a
// JavaScript Number conversion; unparseable input is NaN, so "x" + 1 is
// "NaN" rather than an error. Division by zero yields Infinity or NaN.
func arithmetic(name string, op func(a, b float64) float64) Atom {
	return Atom{
		Name:  name,
		Arity: 2,
		Eval: func(_ context.Context, _ Env, args []value.Value) (value.Value, error) {
			a, b, err := numbers(name, args)
			if err != nil {
				return nil, err
			}
			return value.Number(op(a, b)), nil
		},
	}
}

// comparison builds a binary numeric predicate. Any comparison with NaN
// is false.
func comparison(name string, op func(a, b float64) bool) Atom {
	return Atom{
		Name:  name,
		Arity: 2,
		Eval: func(_ context.Context, _ Env, args []value.Value) (value.Value, error) {
			a, b, err := numbers(name, args)
			if err != nil {
				return nil, err
			}
			return value.Bool(op(a, b)), nil
		},
	}
}

func numbers(name string, args []value.Value) (float64, float64, error) {
	a, err := str(name, args, 0)
	if err != nil {
		return 0, 0, err
	}
	b, err := str(name, args, 1)
	if err != nil {
		return 0, 0, err
	}
	return value.ParseNumber(a), value.ParseNumber(b), nil
}

// str returns args[i] as a string or ErrArgumentType.
func str(name string, args []value.Value, i int) (string, error) {
	s, ok := args[i].(value.String)
	if !ok {
		return "", fmt.Errorf("%s: argument %d: %w: want string, got %T", name, i, ErrArgumentType, args[i])
	}
	return string(s), nil
}

func evalEq(_ context.Context, _ Env, args []value.Value) (value.Value, error) {
	return value.Bool(value.Equal(args[0], args[1])), nil
}

func evalNe(_ context.Context, _ Env, args []value.Value) (value.Value, error) {
	return value.Bool(!value.Equal(args[0], args[1])), nil
}

func evalSplit(_ context.Context, _ Env, args []value.Value) (value.Value, error) {
	s, err := str("split", args, 0)
	if err != nil {
		return nil, err
	}
	sep, err := str("split", args, 1)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(s, sep)
	items := make([]value.Value, len(parts))
	for i, p := range parts {
		items[i] = value.String(p)
	}
	return value.Seq(items...), nil
}

func evalLen(_ context.Context, _ Env, args []value.Value) (value.Value, error) {
	obj, ok := args[0].(value.Object)
	if !ok {
		return nil, fmt.Errorf("len: %w: want object, got %T", ErrArgumentType, args[0])
	}
	return value.Number(float64(obj.Len())), nil
}

// evalFor runs each element of a sequence through the full dispatch
// pipeline in index order and returns the last result. An empty sequence
// returns Null. The first failing element stops the loop.
func evalFor(ctx context.Context, env Env, args []value.Value) (value.Value, error) {
	obj, ok := args[0].(value.Object)
	if !ok {
		return nil, fmt.Errorf("for: %w: want sequence, got %T", ErrArgumentType, args[0])
	}
	items, err := obj.Items()
	if err != nil {
		return nil, fmt.Errorf("for: %w: %w", ErrArgumentType, err)
	}

	var last value.Value = value.Null{}
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		last, err = env.Execute(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("for[%d]: %w", i, err)
		}
	}
	return last, nil
}

// evalRand ignores its argument; the arity exists so that feeding any
// value through match triggers it.
func evalRand(_ context.Context, _ Env, _ []value.Value) (value.Value, error) {
	return value.Number(rand.Float64()), nil
}

func evalEncrypt(ctx context.Context, env Env, args []value.Value) (value.Value, error) {
	c := env.Cipher()
	if c == nil {
		return nil, fmt.Errorf("encrypt: %w", ErrNoCipher)
	}
	out, err := c.Encrypt(ctx, value.Text(args[0]))
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return value.String(out), nil
}

func evalDecrypt(ctx context.Context, env Env, args []value.Value) (value.Value, error) {
	c := env.Cipher()
	if c == nil {
		return nil, fmt.Errorf("decrypt: %w", ErrNoCipher)
	}
	s, err := str("decrypt", args, 0)
	if err != nil {
		return nil, err
	}
	out, err := c.Decrypt(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return value.String(out), nil
}
