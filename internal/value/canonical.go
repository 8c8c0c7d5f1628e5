package value

import (
	"bytes"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces canonical JSON for trace snapshots.
//
// Differences from Marshal:
//  1. Strings and keys are NFC normalized
//  2. U+2028 and U+2029 are written raw, not escaped
//
// Two traces that differ only in Unicode composition serialize to the same
// bytes. Do not use this for call encoding: normalization changes argument
// content.
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, marshalCanonicalString); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonicalString(s string) ([]byte, error) {
	out, err := marshalString(norm.NFC.String(s))
	if err != nil {
		return nil, err
	}
	// encoding/json escapes these for JavaScript embedding.
	out = unescapeSeparator(out, `\u2028`, "\u2028")
	out = unescapeSeparator(out, `\u2029`, "\u2029")
	return out, nil
}

// unescapeSeparator replaces escape sequences that are real escapes, not
// the tail of an escaped backslash ("\\u2028" stays as written).
func unescapeSeparator(data []byte, escaped, raw string) []byte {
	var out []byte
	for {
		i := bytes.Index(data, []byte(escaped))
		if i < 0 {
			return append(out, data...)
		}
		backslashes := 0
		for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
			backslashes++
		}
		out = append(out, data[:i]...)
		if backslashes%2 == 0 {
			out = append(out, raw...)
		} else {
			out = append(out, escaped...)
		}
		data = data[i+len(escaped):]
	}
}
