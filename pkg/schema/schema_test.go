package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type card struct {
	Number int      `json:"number" description:"Position in the deck"`
	Front  string   `json:"front"`
	Side   string   `json:"side" enum:"A,B"`
	Score  float64  `json:"score,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Hidden string   `json:"-"`
	secret string
}

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var obj map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &obj))
	return obj
}

func TestFor(t *testing.T) {
	s, err := For(&card{})
	require.NoError(t, err)

	assert.Equal(t, "card", s.Name)
	require.Len(t, s.Properties, 5)
	assert.Equal(t, Property{Name: "number", Type: "integer", Description: "Position in the deck", Required: true}, s.Properties[0])
	assert.Equal(t, []string{"A", "B"}, s.Properties[2].Enum)
	assert.False(t, s.Properties[3].Required)
	assert.Equal(t, "array", s.Properties[4].Type)

	m := s.Map()
	assert.Equal(t, "object", m["type"])
	assert.Equal(t, []string{"number", "front", "side"}, m["required"])
	assert.Contains(t, s.String(), `"enum"`)
}

func TestFor_NotStruct(t *testing.T) {
	_, err := For(42)
	assert.ErrorContains(t, err, "expected a struct")

	_, err = For(nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	s := MustFor(card{})

	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"valid", `{"number": 1, "front": "x", "side": "A"}`, ""},
		{"optional present", `{"number": 1, "front": "x", "side": "B", "score": 0.5, "tags": ["a"]}`, ""},
		{"extra keys ignored", `{"number": 1, "front": "x", "side": "A", "other": true}`, ""},
		{"missing", `{"number": 1, "side": "A"}`, `missing required field "front"`},
		{"null", `{"number": 1, "front": null, "side": "A"}`, `missing required field "front"`},
		{"fractional integer", `{"number": 1.5, "front": "x", "side": "A"}`, `field "number" must be of type integer`},
		{"string for integer", `{"number": "1", "front": "x", "side": "A"}`, `field "number" must be of type integer`},
		{"number for string", `{"number": 1, "front": 3, "side": "A"}`, `field "front" must be of type string`},
		{"enum", `{"number": 1, "front": "x", "side": "E"}`, `field "side" must be one of A, B`},
		{"wrong optional type", `{"number": 1, "front": "x", "side": "A", "tags": "a"}`, `field "tags" must be of type array`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(decode(t, tt.raw))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
