package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/loregate/internal/ir"
)

// marshalSourceValue converts a source value to canonical JSON TEXT.
func marshalSourceValue(v ir.Value) (string, error) {
	data, err := ir.MarshalValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal source value: %w", err)
	}
	return string(data), nil
}

// unmarshalSourceValue parses canonical JSON TEXT to a source value.
func unmarshalSourceValue(data string) (ir.Value, error) {
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal source value: %w", err)
	}
	return v, nil
}

// marshalMetadata converts log entry metadata to canonical JSON TEXT.
// Empty metadata is stored as "{}".
func marshalMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(m)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

// unmarshalMetadata parses canonical JSON TEXT to metadata.
// Numbers decode as json.Number so integers keep their exact value.
// "{}" decodes to nil, matching entries logged without metadata.
func unmarshalMetadata(data string) (map[string]any, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return m, nil
}
