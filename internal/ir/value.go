package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a sealed interface representing a named source value.
// Only String, Int64 and Boolean implement it.
// NO float variant - floats are forbidden in source values.
type Value interface {
	value() // Sealed - only these types implement it
}

// String is a string source value.
type String string

func (String) value() {}

// Int64 is an integer source value.
type Int64 int64

func (Int64) value() {}

// Boolean is a boolean source value.
type Boolean bool

func (Boolean) value() {}

// AsInt returns the integer form of v if it is an Int64.
func AsInt(v Value) (int, bool) {
	n, ok := v.(Int64)
	return int(n), ok
}

// AsString returns the string form of v if it is a String.
func AsString(v Value) (string, bool) {
	s, ok := v.(String)
	return string(s), ok
}

// FormatValue renders v for logs and text output.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int64:
		return strconv.FormatInt(int64(val), 10)
	case Boolean:
		return strconv.FormatBool(bool(val))
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseValue interprets a command-line literal: integers become Int64,
// "true"/"false" become Boolean, anything else is a String.
func ParseValue(s string) Value {
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
		return Int64(n)
	}
	switch s {
	case "true":
		return Boolean(true)
	case "false":
		return Boolean(false)
	}
	return String(s)
}

// ValueFromAny converts a decoded YAML/JSON scalar into a Value.
// Rejects null, floats and composite values.
func ValueFromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in source values")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Boolean(val), nil
	case int:
		return Int64(val), nil
	case int64:
		return Int64(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			return nil, fmt.Errorf("floats are forbidden in source values: %s", s)
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int64(n), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in source values: %v", val)
	default:
		return nil, fmt.Errorf("unsupported source value type: %T", v)
	}
}

// MarshalValue encodes v as JSON.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Int64:
		return json.Marshal(int64(val))
	case Boolean:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// UnmarshalValue decodes JSON into a Value with strict validation.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ValueFromAny(raw)
}

// Values is a map of source values with a strict JSON decoder.
type Values map[string]Value

// UnmarshalJSON implements json.Unmarshaler for Values.
func (vs *Values) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*vs = make(Values, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("source %q: %w", k, err)
		}
		(*vs)[k] = val
	}
	return nil
}
