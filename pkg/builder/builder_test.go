package builder_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/confiture/confiture/pkg/builder"
	"github.com/confiture/confiture/pkg/consts"
	"github.com/stretchr/testify/require"
)

func writeSQL(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), consts.ModeDir))
	require.NoError(t, os.WriteFile(path, []byte(content), consts.ModeFile))
}

func TestCompile(t *testing.T) {
	t.Run("compiles a file without includes", func(t *testing.T) {
		tmpDir := t.TempDir()
		entry := filepath.Join(tmpDir, "schema.sql")
		writeSQL(t, entry, `CREATE TABLE users (id bigint PRIMARY KEY);
CREATE TABLE orders (id bigint PRIMARY KEY);`)

		var buf bytes.Buffer
		require.NoError(t, builder.Compile(entry, &buf))

		compiled := buf.String()
		require.Contains(t, compiled, "CREATE TABLE users")
		require.Contains(t, compiled, "CREATE TABLE orders")
	})

	t.Run("splices includes relative to the including file", func(t *testing.T) {
		tmpDir := t.TempDir()
		entry := filepath.Join(tmpDir, "schema.sql")
		writeSQL(t, entry, `CREATE SCHEMA app;
-- confiture:include tables/users.sql
-- confiture:include tables/orders.sql`)
		writeSQL(t, filepath.Join(tmpDir, "tables", "users.sql"),
			`CREATE TABLE app.users (id bigint PRIMARY KEY, name text NOT NULL);`)
		writeSQL(t, filepath.Join(tmpDir, "tables", "orders.sql"),
			`CREATE TABLE app.orders (id bigint PRIMARY KEY, total numeric(10, 2));`)

		var buf bytes.Buffer
		require.NoError(t, builder.Compile(entry, &buf))

		compiled := buf.String()
		require.Contains(t, compiled, "CREATE SCHEMA app")
		require.Contains(t, compiled, "CREATE TABLE app.users")
		require.Contains(t, compiled, "CREATE TABLE app.orders")
		require.NotContains(t, compiled, "-- confiture:include")
	})

	t.Run("handles nested includes", func(t *testing.T) {
		tmpDir := t.TempDir()
		entry := filepath.Join(tmpDir, "schema.sql")
		writeSQL(t, entry, "-- confiture:include shared/common.sql")
		writeSQL(t, filepath.Join(tmpDir, "shared", "common.sql"),
			`CREATE TABLE base (id bigint);
-- confiture:include ../tables/specific.sql`)
		writeSQL(t, filepath.Join(tmpDir, "tables", "specific.sql"),
			`CREATE TABLE specific (id bigint, data text);`)

		var buf bytes.Buffer
		require.NoError(t, builder.Compile(entry, &buf))

		compiled := buf.String()
		require.Contains(t, compiled, "CREATE TABLE base")
		require.Contains(t, compiled, "CREATE TABLE specific")
	})

	t.Run("rejects include cycles", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeSQL(t, filepath.Join(tmpDir, "a.sql"), "-- confiture:include b.sql")
		writeSQL(t, filepath.Join(tmpDir, "b.sql"), "-- confiture:include a.sql")

		var buf bytes.Buffer
		err := builder.Compile(filepath.Join(tmpDir, "a.sql"), &buf)
		require.Error(t, err)
		require.Contains(t, err.Error(), "include cycle")
	})

	t.Run("rejects directive without a path", func(t *testing.T) {
		tmpDir := t.TempDir()
		entry := filepath.Join(tmpDir, "schema.sql")
		writeSQL(t, entry, "-- confiture:include")

		var buf bytes.Buffer
		err := builder.Compile(entry, &buf)
		require.Error(t, err)
		require.Contains(t, err.Error(), "without a path")
	})

	t.Run("returns error for missing files", func(t *testing.T) {
		var buf bytes.Buffer
		err := builder.Compile("does-not-exist.sql", &buf)
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to read file")
	})

	t.Run("preserves comments and blank lines", func(t *testing.T) {
		tmpDir := t.TempDir()
		entry := filepath.Join(tmpDir, "schema.sql")
		writeSQL(t, entry, `-- users live here
CREATE TABLE users (id bigint);

CREATE TABLE orders (id bigint);`)

		var buf bytes.Buffer
		require.NoError(t, builder.Compile(entry, &buf))

		require.Equal(t, `-- users live here
CREATE TABLE users (id bigint);

CREATE TABLE orders (id bigint);
`, buf.String())
	})
}
