package copyconv_test

import (
	"testing"

	. "github.com/confiture/confiture/pkg/copyconv"
	"github.com/stretchr/testify/require"
)

func TestEncodeField(t *testing.T) {
	tests := []struct {
		name  string
		value string
		null  bool
		want  string
	}{
		{name: "plain", value: "Alice", want: "Alice"},
		{name: "null", null: true, want: `\N`},
		{name: "empty_string_is_not_null", value: "", want: ""},
		{name: "tab", value: "a\tb", want: `a\tb`},
		{name: "newline", value: "a\nb", want: `a\nb`},
		{name: "carriage_return", value: "a\rb", want: `a\rb`},
		{name: "backslash", value: `a\b`, want: `a\\b`},
		{name: "literal_backslash_n_stays_distinct_from_null", value: `\N`, want: `\\N`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, EncodeField(tt.value, tt.null))
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []string{"plain", "has\ttab", "has\nnewline", `back\slash`, `\N`, ""}
	nulls := []bool{false, false, false, false, false, true}

	line := EncodeLine(values, nulls)
	decoded, err := DecodeLine(line)
	require.NoError(t, err)
	require.Len(t, decoded, len(values))

	for i, v := range values {
		if nulls[i] {
			require.Nil(t, decoded[i])
			continue
		}
		require.Equal(t, v, decoded[i])
	}
}

func TestDecodeLine(t *testing.T) {
	t.Run("null_field", func(t *testing.T) {
		got, err := DecodeLine("1\t\\N\tx")
		require.NoError(t, err)
		require.Equal(t, []any{"1", nil, "x"}, got)
	})

	t.Run("dangling_escape", func(t *testing.T) {
		_, err := DecodeLine(`abc\`)
		require.Error(t, err)
	})
}
