package analyzer_test

import (
	"testing"

	. "github.com/confiture/confiture/pkg/analyzer"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	classifier := NewClassifier(DefaultRules())

	tests := []struct {
		name string
		sql  string
		want Classification
	}{
		{name: "delete_without_where", sql: "DELETE FROM logs", want: Unsafe},
		{name: "update_without_where", sql: "UPDATE users SET active = false", want: Unsafe},
		{name: "delete_with_where", sql: "DELETE FROM logs WHERE id = 1", want: Warning},
		{name: "update_with_where", sql: "UPDATE users SET active = false WHERE id = 1", want: Warning},
		{name: "drop_table", sql: "DROP TABLE users", want: Unsafe},
		{name: "drop_table_if_exists", sql: "DROP TABLE IF EXISTS users", want: Unsafe},
		{name: "drop_index", sql: "DROP INDEX idx_users_email", want: Unsafe},
		{name: "drop_schema", sql: "DROP SCHEMA analytics CASCADE", want: Unsafe},
		{name: "alter_table", sql: "ALTER TABLE users ADD COLUMN email text", want: Warning},
		{name: "create_index", sql: "CREATE INDEX idx_users_email ON users (email)", want: Warning},
		{name: "truncate", sql: "TRUNCATE TABLE logs", want: Warning},
		{name: "select", sql: "SELECT * FROM users", want: Safe},
		{name: "plain_insert", sql: "INSERT INTO users (id) VALUES (1)", want: Safe},
		{name: "create_table", sql: "CREATE TABLE users (id bigint)", want: Safe},
		{name: "malformed", sql: "%%% definitely not sql", want: Unsafe},
		{name: "empty", sql: "", want: Unsafe},
		{name: "keyword_case_insensitive", sql: "delete from logs", want: Unsafe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, note := classifier.Classify(tt.sql)
			require.Equal(t, tt.want, got)
			if got != Safe {
				require.NotEmpty(t, note)
			}
		})
	}
}

func TestClassifyDestructivePatterns(t *testing.T) {
	rules, err := DefaultRules().WithDestructivePatterns([]string{`(?i)truncate\s+table\s+audit_log`})
	require.NoError(t, err)

	classifier := NewClassifier(rules)

	got, _ := classifier.Classify("TRUNCATE TABLE audit_log")
	require.Equal(t, Unsafe, got)

	// The same statement against another table keeps its structural tier.
	got, _ = classifier.Classify("TRUNCATE TABLE sessions")
	require.Equal(t, Warning, got)

	_, err = DefaultRules().WithDestructivePatterns([]string{"("})
	require.Error(t, err)
}

func TestClassifyDropColumnPattern(t *testing.T) {
	classifier := NewClassifier(DefaultRules())

	got, _ := classifier.Classify("ALTER TABLE users DROP COLUMN legacy_flags")
	require.Equal(t, Unsafe, got)
}
