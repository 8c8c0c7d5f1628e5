// Package atom holds the registry of named, fixed-arity operations the
// dispatcher can invoke.
//
// The registry is built once at process start and never mutated, so it is
// safe to share between concurrent dispatches without locking.
package atom

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/moon/internal/value"
)

var (
	// ErrArgumentType is returned when an atom receives a value of the
	// wrong shape (e.g. split on an object).
	ErrArgumentType = errors.New("argument type mismatch")

	// ErrNoCipher is returned by encrypt/decrypt when no cipher is configured.
	ErrNoCipher = errors.New("no cipher configured")
)

// Cipher is the asymmetric primitive behind the encrypt and decrypt atoms.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// Env is the part of the runtime an atom may call back into.
type Env interface {
	// Execute runs a fully specified expression through the dispatcher.
	Execute(ctx context.Context, expr value.Value) (value.Value, error)

	// Cipher returns the configured cipher, or nil.
	Cipher() Cipher
}

// Func evaluates an atom. len(args) always equals the atom's arity; the
// dispatcher guarantees it.
type Func func(ctx context.Context, env Env, args []value.Value) (value.Value, error)

// Atom is a named operation with a fixed number of arguments.
type Atom struct {
	Name  string
	Arity int
	Eval  Func
}

// Registry maps names to atoms. Immutable after construction.
type Registry struct {
	atoms map[string]Atom
	names []string
}

// NewRegistry builds a registry from atoms.
// Panics on duplicate names, empty names, arity < 1 or a nil Eval: these
// are programming errors in the registry definition.
func NewRegistry(atoms ...Atom) *Registry {
	r := &Registry{
		atoms: make(map[string]Atom, len(atoms)),
		names: make([]string, 0, len(atoms)),
	}
	for _, a := range atoms {
		if a.Name == "" {
			panic("atom: empty name")
		}
		if a.Arity < 1 {
			panic(fmt.Sprintf("atom: %q has arity %d, need at least 1", a.Name, a.Arity))
		}
		if a.Eval == nil {
			panic(fmt.Sprintf("atom: %q has no Eval", a.Name))
		}
		if _, dup := r.atoms[a.Name]; dup {
			panic(fmt.Sprintf("atom: duplicate name %q", a.Name))
		}
		r.atoms[a.Name] = a
		r.names = append(r.names, a.Name)
	}
	slices.Sort(r.names)
	return r
}

// Lookup returns the atom registered under name.
// A miss is not an error: the dispatcher falls back to storage.
func (r *Registry) Lookup(name string) (Atom, bool) {
	a, ok := r.atoms[name]
	return a, ok
}

// Names returns every registered name in sorted order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Len returns the number of registered atoms.
func (r *Registry) Len() int {
	return len(r.atoms)
}
