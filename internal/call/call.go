// Package call implements the wire encoding of call expressions.
//
// A call expression is an operation name plus the arguments bound to it so
// far. On the wire it is a single opaque string:
//
//	add                  no arguments bound
//	add<:>["2"]          one argument bound
//
// The suffix after the delimiter is a JSON array of values. Callers thread
// these strings back into the dispatcher to supply the next argument.
//
// # Delimiter collisions
//
// Decode splits on the FIRST occurrence of Delimiter. Argument content that
// contains "<:>" is therefore safe (it always follows the first delimiter),
// but an operation or collection name containing "<:>" is silently split in
// the wrong place. Names are not validated against this.
package call

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/moon/internal/value"
)

// Delimiter separates the operation name from its bound-argument list.
const Delimiter = "<:>"

// ErrMalformed is the sentinel wrapped by every MalformedError.
var ErrMalformed = errors.New("malformed call encoding")

// MalformedError reports a call string whose bound-argument suffix is not
// a JSON array.
type MalformedError struct {
	Input string
	Err   error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("%v: %q: %v", ErrMalformed, e.Input, e.Err)
}

// Unwrap returns both the sentinel and the parse failure.
func (e *MalformedError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

// Call is an operation name with its bound arguments in order.
type Call struct {
	Name string
	Args []value.Value
}

// Bind returns a copy of c with v appended to the argument list.
// c is never mutated.
func (c Call) Bind(v value.Value) Call {
	args := make([]value.Value, len(c.Args), len(c.Args)+1)
	copy(args, c.Args)
	return Call{Name: c.Name, Args: append(args, v)}
}

// String returns the wire encoding of c.
func (c Call) String() string {
	return Encode(c)
}

// Encode returns the wire form of c. A call with no bound arguments
// encodes as its bare name so plain operation names stay readable.
func Encode(c Call) string {
	if len(c.Args) == 0 {
		return c.Name
	}
	data, err := value.MarshalArray(c.Args)
	if err != nil {
		// Value is sealed; every implementation marshals.
		panic(fmt.Sprintf("call: encode %q: %v", c.Name, err))
	}
	return c.Name + Delimiter + string(data)
}

// Decode parses a wire string. Everything before the first Delimiter is
// the name. If a delimiter is present the remainder must be a JSON array.
func Decode(s string) (Call, error) {
	name, suffix, found := strings.Cut(s, Delimiter)
	if !found {
		return Call{Name: name}, nil
	}
	args, err := value.UnmarshalArray([]byte(suffix))
	if err != nil {
		return Call{}, &MalformedError{Input: s, Err: err}
	}
	return Call{Name: name, Args: args}, nil
}
