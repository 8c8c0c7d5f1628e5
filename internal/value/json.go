package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Marshal encodes v as JSON.
//
// Object keys are written in SortedKeys order and HTML characters are
// not escaped, so "<:>" survives as-is inside encoded call arguments.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeValue(&buf, v, marshalString); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalArray encodes items as a JSON array.
func MarshalArray(items []Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(&buf, item, marshalString); err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler for String.
func (s String) MarshalJSON() ([]byte, error) {
	return marshalString(string(s))
}

// MarshalJSON implements json.Marshaler for Object with sorted keys.
func (obj Object) MarshalJSON() ([]byte, error) {
	return Marshal(obj)
}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

type stringEncoder func(string) ([]byte, error)

func writeValue(buf *bytes.Buffer, v Value, enc stringEncoder) error {
	switch val := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case String:
		data, err := enc(string(val))
		if err != nil {
			return err
		}
		buf.Write(data)
	case Object:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, err := enc(k)
			if err != nil {
				return fmt.Errorf("marshal key %q: %w", k, err)
			}
			buf.Write(keyBytes)
			buf.WriteByte(':')
			if err := writeValue(buf, val[k], enc); err != nil {
				return fmt.Errorf("marshal value for key %q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown Value type: %T", v)
	}
	return nil
}

// marshalString encodes s as a JSON string without HTML escaping.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	// json.Encoder adds a trailing newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Unmarshal decodes JSON into a Value.
//
// Conversion rules:
//   - strings stay strings
//   - numbers become their canonical number string (2.50 -> "2.5")
//   - true/false become "true"/"false"
//   - null becomes Null
//   - arrays become sequence objects
//   - objects become objects
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return FromAny(raw)
}

// UnmarshalArray decodes a JSON array into its elements.
// Fails if data is valid JSON but not an array.
func UnmarshalArray(data []byte) ([]Value, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("expected JSON array")
	}
	return v.(Object).Items()
}

// FromAny converts a decoded JSON or YAML document into a Value.
// Accepts the types produced by encoding/json (with or without UseNumber)
// and gopkg.in/yaml.v3.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case json.Number:
		return String(FormatNumber(ParseNumber(string(val)))), nil
	case int:
		return String(strconv.Itoa(val)), nil
	case int64:
		return String(strconv.FormatInt(val, 10)), nil
	case uint64:
		return String(strconv.FormatUint(val, 10)), nil
	case float64:
		return Number(val), nil
	case []any:
		obj := make(Object, len(val))
		for i, elem := range val {
			item, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			obj[strconv.Itoa(i)] = item
		}
		return obj, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			item, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = item
		}
		return obj, nil
	case map[any]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			key := fmt.Sprint(k)
			item, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", key, err)
			}
			obj[key] = item
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
