package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/confiture/confiture/pkg/consts"
	"github.com/confiture/confiture/pkg/project"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	t.Run("creates the standard layout", func(t *testing.T) {
		tmpDir := t.TempDir()
		p := project.New(tmpDir)

		require.NoError(t, p.Initialize(project.InitOptions{}))

		for _, dir := range []string{"db", "db/migrations", "db/seeds"} {
			info, err := os.Stat(filepath.Join(tmpDir, dir))
			require.NoError(t, err)
			require.True(t, info.IsDir())
		}

		for _, file := range []string{consts.ConfigFile, consts.DefaultSchemaFile} {
			info, err := os.Stat(filepath.Join(tmpDir, file))
			require.NoError(t, err)
			require.False(t, info.IsDir())
		}

		cfg := p.Config()
		require.NotNil(t, cfg)
		require.Equal(t, consts.DefaultMigrationsDir, cfg.Dir)
		require.Equal(t, consts.DefaultSeedsDir, cfg.Seeds.Dir)
	})

	t.Run("preserves existing files", func(t *testing.T) {
		tmpDir := t.TempDir()
		custom := []byte("dir: migrations/custom\n")
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, consts.ConfigFile), custom, consts.ModeFile))

		p := project.New(tmpDir)
		require.NoError(t, p.Initialize(project.InitOptions{}))

		data, err := os.ReadFile(filepath.Join(tmpDir, consts.ConfigFile))
		require.NoError(t, err)
		require.Equal(t, custom, data)
		require.Equal(t, "migrations/custom", p.Config().Dir)
	})

	t.Run("is idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		p := project.New(tmpDir)

		require.NoError(t, p.Initialize(project.InitOptions{}))
		require.NoError(t, p.Initialize(project.InitOptions{}))
	})

	t.Run("writes the database url into the config", func(t *testing.T) {
		tmpDir := t.TempDir()
		p := project.New(tmpDir)

		url := "postgres://localhost:5432/app?sslmode=disable"
		require.NoError(t, p.Initialize(project.InitOptions{DatabaseURL: url}))
		require.Equal(t, url, p.Config().Postgres.URL)

		// The URL survives a reload from disk.
		reloaded := project.New(tmpDir)
		require.NoError(t, reloaded.Initialize(project.InitOptions{}))
		require.Equal(t, url, reloaded.Config().Postgres.URL)
	})

	t.Run("fails for a missing root", func(t *testing.T) {
		err := project.New("/does/not/exist").Initialize(project.InitOptions{})
		require.Error(t, err)
	})
}
