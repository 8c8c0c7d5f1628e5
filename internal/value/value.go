package value

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"
)

// ErrNotSequence is returned when an Object is used as a sequence but its
// keys are not exactly "0".."n-1".
var ErrNotSequence = errors.New("object is not a sequence")

// Value is a sealed interface. Only String, Object and Null implement it.
type Value interface {
	value() // Sealed
}

// String is a scalar value. Numbers and booleans are carried as strings.
type String string

func (String) value() {}

// Object maps string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// Null is the absent result.
type Null struct{}

func (Null) value() {}

// Bool returns the canonical string form of b.
func Bool(b bool) String {
	if b {
		return "true"
	}
	return "false"
}

// Number returns the canonical string form of f (see FormatNumber).
func Number(f float64) String {
	return String(FormatNumber(f))
}

// Seq builds a sequence object keyed "0", "1", ... in argument order.
func Seq(items ...Value) Object {
	obj := make(Object, len(items))
	for i, item := range items {
		obj[strconv.Itoa(i)] = item
	}
	return obj
}

// Len returns the number of entries.
func (obj Object) Len() int {
	return len(obj)
}

// Items returns the elements of a sequence object in index order.
// Returns ErrNotSequence if any key in 0..Len()-1 is missing.
func (obj Object) Items() ([]Value, error) {
	items := make([]Value, len(obj))
	for i := range items {
		v, ok := obj[strconv.Itoa(i)]
		if !ok {
			return nil, fmt.Errorf("%w: missing index %d", ErrNotSequence, i)
		}
		items[i] = v
	}
	return items, nil
}

// SortedKeys returns keys in serialization order: keys that are canonical
// non-negative integers first, ascending numerically, then every other key
// by UTF-16 code units (RFC 8785).
//
// Sequences therefore always serialize as "0", "1", ..., "10" rather than
// "0", "1", "10", "2".
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b string) int {
	ai, aIdx := indexKey(a)
	bi, bIdx := indexKey(b)
	switch {
	case aIdx && bIdx:
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	case aIdx:
		return -1
	case bIdx:
		return 1
	}
	return compareKeysRFC8785(a, b)
}

// indexKey reports whether k is the canonical decimal form of a
// non-negative integer ("0", "7", "12" but not "007" or "-1").
func indexKey(k string) (uint64, bool) {
	if k == "" || (len(k) > 1 && k[0] == '0') {
		return 0, false
	}
	for i := 0; i < len(k); i++ {
		if k[i] < '0' || k[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(k, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
// Go's default string comparison uses UTF-8 which produces a different
// order for supplementary-plane characters.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Text renders v as a plain string: Strings as themselves, Null as "",
// Objects as their JSON encoding.
func Text(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case nil, Null:
		return ""
	default:
		data, err := Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Equal reports deep structural equality. Strings compare byte-wise with
// no numeric coercion ("1" != "1.0").
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Null:
		_, ok := b.(Null)
		return ok
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, x := range av {
			y, ok := bv[k]
			if !ok || !Equal(x, y) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}
	return false
}
