package copyconv_test

import (
	"testing"

	. "github.com/confiture/confiture/pkg/copyconv"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	t.Run("multi_row_with_null", func(t *testing.T) {
		got := Convert("INSERT INTO t (a,b) VALUES (1,'x'), (2, NULL)")

		require.True(t, got.Convertible)
		require.Equal(t, 2, got.RowsConverted)
		require.Equal(t, "t", got.Payload.Table)
		require.Equal(t, []string{"a", "b"}, got.Payload.Columns)
		require.Equal(t, []string{"1\tx", "2\t\\N"}, got.Payload.Rows)
	})

	t.Run("qualified_table_and_quoted_columns", func(t *testing.T) {
		got := Convert(`INSERT INTO "app"."Users" ("Id", name) VALUES (1, 'it''s');`)

		require.True(t, got.Convertible)
		require.Equal(t, "app.Users", got.Payload.Table)
		require.Equal(t, []string{"Id", "name"}, got.Payload.Columns)
		require.Equal(t, []string{"1\tit's"}, got.Payload.Rows)
	})

	t.Run("escapes_special_characters", func(t *testing.T) {
		got := Convert("INSERT INTO t (a) VALUES ('line\none\ttab\\slash')")

		require.True(t, got.Convertible)
		require.Equal(t, []string{`line\none\ttab\\slash`}, got.Payload.Rows)
	})

	t.Run("booleans_and_negative_numbers", func(t *testing.T) {
		got := Convert("INSERT INTO t (a, b, c) VALUES (TRUE, false, -3.5)")

		require.True(t, got.Convertible)
		require.Equal(t, []string{"true\tfalse\t-3.5"}, got.Payload.Rows)
	})

	t.Run("leading_dot_decimals", func(t *testing.T) {
		got := Convert("INSERT INTO t (a, b, c) VALUES (.5, -.25, 1.5e2);")

		require.True(t, got.Convertible)
		require.Equal(t, []string{".5\t-.25\t1.5e2"}, got.Payload.Rows)
	})

	t.Run("no_column_list", func(t *testing.T) {
		got := Convert("INSERT INTO t VALUES (1, 'x')")

		require.True(t, got.Convertible)
		require.Empty(t, got.Payload.Columns)
		require.Equal(t, "COPY t FROM STDIN", got.Payload.CopyStatement())
	})

	tests := []struct {
		name   string
		sql    string
		reason Reason
	}{
		{
			name:   "function_call",
			sql:    "INSERT INTO t (a) VALUES (NOW())",
			reason: ReasonFunctionCall,
		},
		{
			name:   "function_call_nested_in_expression",
			sql:    "INSERT INTO t (a) VALUES ('x' || NOW())",
			reason: ReasonFunctionCall,
		},
		{
			name:   "arithmetic_expression",
			sql:    "INSERT INTO t (a) VALUES (1 + 2)",
			reason: ReasonExpression,
		},
		{
			name:   "cast_expression",
			sql:    "INSERT INTO t (a) VALUES ('1'::int)",
			reason: ReasonExpression,
		},
		{
			name:   "select_source",
			sql:    "INSERT INTO t (a) SELECT a FROM s",
			reason: ReasonHasSelectSource,
		},
		{
			name:   "cte",
			sql:    "WITH src AS (SELECT 1 AS a) INSERT INTO t (a) SELECT a FROM src",
			reason: ReasonHasCTE,
		},
		{
			name:   "on_conflict",
			sql:    "INSERT INTO t (a) VALUES (1) ON CONFLICT DO NOTHING",
			reason: ReasonHasOnConflict,
		},
		{
			name:   "returning",
			sql:    "INSERT INTO t (a) VALUES (1) RETURNING a",
			reason: ReasonHasReturning,
		},
		{
			name:   "subquery_value",
			sql:    "INSERT INTO t (a) VALUES ((SELECT max(id) FROM s))",
			reason: ReasonHasSubquery,
		},
		{
			name:   "default_value",
			sql:    "INSERT INTO t (a) VALUES (DEFAULT)",
			reason: ReasonDefaultValue,
		},
		{
			name:   "not_an_insert",
			sql:    "UPDATE t SET a = 1",
			reason: ReasonNotInsert,
		},
		{
			name:   "column_value_count_mismatch",
			sql:    "INSERT INTO t (a, b) VALUES (1)",
			reason: ReasonParseError,
		},
		{
			name:   "garbage",
			sql:    "INSERT INTO VALUES GARBAGE (",
			reason: ReasonParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(tt.sql)

			require.False(t, got.Convertible)
			require.Equal(t, tt.reason, got.Reason)
			require.Nil(t, got.Payload)
			// The original statement must survive untouched for fallback.
			require.Equal(t, tt.sql, got.Statement)
		})
	}
}

func TestPayloadString(t *testing.T) {
	got := Convert("INSERT INTO users (id, name) VALUES (1, 'Alice'), (2, NULL)")
	require.True(t, got.Convertible)

	want := "COPY users (id, name) FROM STDIN;\n" +
		"1\tAlice\n" +
		"2\t\\N\n" +
		`\.`
	require.Equal(t, want, got.Payload.String())
}

func TestPayloadRecords(t *testing.T) {
	got := Convert("INSERT INTO t (a, b) VALUES ('x', NULL), ('a\tb', 'c')")
	require.True(t, got.Convertible)

	records, err := got.Payload.Records()
	require.NoError(t, err)
	require.Equal(t, [][]any{
		{"x", nil},
		{"a\tb", "c"},
	}, records)
}
