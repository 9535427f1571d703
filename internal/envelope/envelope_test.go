package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(records []Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		id, _ := r["id"].(string)
		out = append(out, id)
	}
	return out
}

func TestUnwrap_Shapes(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantIDs     []string
		wantDropped int
	}{
		{
			name:    "double wrapped",
			raw:     `{"data":[{"data":{"id":"a"}},{"data":{"id":"b"}}]}`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "single wrapped",
			raw:     `{"data":[{"id":"a"},{"id":"b"}]}`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "items key",
			raw:     `{"items":[{"id":"x"}]}`,
			wantIDs: []string{"x"},
		},
		{
			name:    "bare list of wrapped",
			raw:     `[{"data":{"id":"a"}},{"id":"b"}]`,
			wantIDs: []string{"a", "b"},
		},
		{
			name:    "nested pagination",
			raw:     `{"data":{"data":[{"id":"p1"},{"id":"p2"}],"total":2}}`,
			wantIDs: []string{"p1", "p2"},
		},
		{
			name:        "non object entries dropped",
			raw:         `{"data":[{"data":{"id":"a"}}, 7, "str", null, {"data":"oops"}, {"id":"b"}]}`,
			wantIDs:     []string{"a", "b"},
			wantDropped: 4,
		},
		{
			name:    "null data",
			raw:     `{"data":null}`,
			wantIDs: []string{},
		},
		{
			name:        "error object",
			raw:         `{"message":"forbidden"}`,
			wantIDs:     []string{},
			wantDropped: 1,
		},
		{
			name:        "invalid json",
			raw:         `{"data":[`,
			wantIDs:     []string{},
			wantDropped: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, dropped := Unwrap([]byte(tt.raw))
			assert.Equal(t, tt.wantIDs, ids(records))
			assert.Equal(t, tt.wantDropped, dropped)
		})
	}
}

func TestUnwrap_Empty(t *testing.T) {
	records, dropped := Unwrap(nil)
	assert.Empty(t, records)
	assert.Zero(t, dropped)
}

func TestUnwrap_PreservesNestedFields(t *testing.T) {
	raw := `{"data":[{"data":{"player":{"id":"p1"},"stats":{"fgMade":3}}}]}`

	records, dropped := Unwrap([]byte(raw))
	require.Len(t, records, 1)
	assert.Zero(t, dropped)

	player, ok := records[0]["player"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p1", player["id"])
}
