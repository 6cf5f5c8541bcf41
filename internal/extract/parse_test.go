package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain array", `[{"name":"Ali"}]`, `[{"name":"Ali"}]`},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"bare fence", "```\n[1,2]\n```", "[1,2]"},
		{"prose around array", "Here are the leads:\n[1]\nHope this helps.", "[1]"},
		{"object envelope", `Result: {"leads":[1]}`, `{"leads":[1]}`},
		{"array of objects keeps brackets", `[{"a":1},{"b":2}]`, `[{"a":1},{"b":2}]`},
		{"whitespace", "  \n[]\n ", "[]"},
		{"no json", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.input))
		})
	}
}

func TestDecodeEntries(t *testing.T) {
	entries, err := decodeEntries("```json\n[{\"name\":\"Ali\"}, 3]\n```")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = decodeEntries(`{"leads":[]}`)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = decodeEntries(`{"name":"Ali"}`)
	assert.Error(t, err)

	_, err = decodeEntries(`[{"name":`)
	assert.Error(t, err)
}

func TestValidEntry(t *testing.T) {
	assert.NoError(t, validEntry(map[string]any{"name": "Ali", "phone_number": 905551112233.0}))
	assert.NoError(t, validEntry(map[string]any{"name": nil, "extra": map[string]any{}}))
	assert.NoError(t, validEntry(map[string]any{"destination": []any{"Istanbul", "Izmir"}}))
	assert.Error(t, validEntry("Ali"))
	assert.Error(t, validEntry(map[string]any{"name": []any{"Ali"}}))
	assert.Error(t, validEntry(map[string]any{"destination": []any{map[string]any{"city": "Izmir"}}}))
}

func TestField(t *testing.T) {
	assert.Equal(t, "Ali", field("  Ali  ", " "))
	assert.Equal(t, "200", field(200.0, " "))
	assert.Equal(t, "a - b", field([]any{"a", " ", "b"}, " - "))
	assert.Equal(t, "", field(nil, " "))
	assert.Equal(t, "", field(true, " "))
}
