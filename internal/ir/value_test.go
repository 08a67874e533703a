package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSealed(t *testing.T) {
	var _ Value = String("")
	var _ Value = Int64(0)
	var _ Value = Boolean(false)
}

func TestValueFromAny(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    Value
		wantErr string
	}{
		{"string", "rain", String("rain"), ""},
		{"int", 7, Int64(7), ""},
		{"int64", int64(-3), Int64(-3), ""},
		{"bool", true, Boolean(true), ""},
		{"json int", json.Number("12"), Int64(12), ""},
		{"json float", json.Number("1.5"), nil, "floats are forbidden"},
		{"json exponent", json.Number("1e3"), nil, "floats are forbidden"},
		{"float64", 2.0, nil, "floats are forbidden"},
		{"null", nil, nil, "null is forbidden"},
		{"slice", []any{1}, nil, "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValueFromAny(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalValueRejectsFloatsAndNull(t *testing.T) {
	_, err := UnmarshalValue([]byte(`1.5`))
	assert.Error(t, err)

	_, err = UnmarshalValue([]byte(`null`))
	assert.Error(t, err)

	v, err := UnmarshalValue([]byte(`42`))
	require.NoError(t, err)
	assert.Equal(t, Int64(42), v)
}

func TestMarshalValue(t *testing.T) {
	for _, tc := range []struct {
		in   Value
		want string
	}{
		{String("a<b"), `"a<b"`},
		{Int64(5), `5`},
		{Boolean(false), `false`},
	} {
		got, err := MarshalValue(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, string(got))
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, Int64(10), ParseValue("10"))
	assert.Equal(t, Int64(-2), ParseValue("-2"))
	assert.Equal(t, Boolean(true), ParseValue("true"))
	assert.Equal(t, String("Alice,Bob"), ParseValue("Alice,Bob"))
	assert.Equal(t, String("1.5"), ParseValue("1.5"))
}

func TestValuesUnmarshalJSON(t *testing.T) {
	var vs Values
	require.NoError(t, json.Unmarshal([]byte(`{"affection":3,"mood":"calm","met":true}`), &vs))
	assert.Equal(t, Values{
		"affection": Int64(3),
		"mood":      String("calm"),
		"met":       Boolean(true),
	}, vs)

	err := json.Unmarshal([]byte(`{"affection":3.5}`), &vs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `source "affection"`)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "3", FormatValue(Int64(3)))
	assert.Equal(t, "x", FormatValue(String("x")))
	assert.Equal(t, "true", FormatValue(Boolean(true)))
	assert.Equal(t, "", FormatValue(nil))
}
