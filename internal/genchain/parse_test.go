package genchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "bare_object",
			in:   `{"a": 1}`,
			want: `{"a": 1}`,
		},
		{
			name: "fenced",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "fenced_no_language",
			in:   "```\n[1, 2]\n```",
			want: `[1, 2]`,
		},
		{
			name: "leading_prose",
			in:   `Here is the JSON you asked for: {"a": {"b": 2}} hope it helps`,
			want: `{"a": {"b": 2}}`,
		},
		{
			name: "array_with_prose",
			in:   `Sure! [{"x": 1}, {"x": 2}]`,
			want: `[{"x": 1}, {"x": 2}]`,
		},
		{
			name: "braces_inside_strings",
			in:   `{"a": "closing } inside", "b": 1} trailing`,
			want: `{"a": "closing } inside", "b": 1}`,
		},
		{
			name: "no_json",
			in:   "no structured content here",
			want: "no structured content here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestDecodeBatch_Array(t *testing.T) {
	raw, err := DecodeBatch(`[{"title": "A"}, {"title": "B"}]`)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, "A", raw[0]["title"])
}

func TestDecodeBatch_WrapperObject(t *testing.T) {
	raw, err := DecodeBatch(`{"personas": [{"title": "A"}]}`)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "A", raw[0]["title"])
}

func TestDecodeBatch_FencedWrapper(t *testing.T) {
	raw, err := DecodeBatch("```json\n{\"personas\": [{\"title\": \"A\"}, {\"title\": \"B\"}]}\n```")
	require.NoError(t, err)
	assert.Len(t, raw, 2)
}

func TestDecodeBatch_Invalid(t *testing.T) {
	_, err := DecodeBatch("not json at all")
	require.Error(t, err)

	_, err = DecodeBatch(`{"something_else": true}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no personas array")
}
