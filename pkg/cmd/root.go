package cmd

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/confiture/confiture/pkg/config"
	"github.com/confiture/confiture/pkg/consts"
	"github.com/confiture/confiture/pkg/executor"
	"github.com/confiture/confiture/pkg/format"
	"github.com/confiture/confiture/pkg/postgres"
	"github.com/urfave/cli/v3"
)

// Run creates and executes the confiture CLI application.
//
// Global flags:
//   - --config, -c: project configuration file (defaults to confiture.yaml)
//   - --dir, -d: project directory (defaults to the current directory)
//
// Example usage:
//
//	err := Run(ctx, "v1.0.0", []string{"confiture", "migrate", "up", "--dry-run"})
func Run(ctx context.Context, version string, args []string) error {
	app := &cli.Command{
		Name:  "confiture",
		Usage: "PostgreSQL schema migrations with dry-run analysis and COPY-optimized seeding",
		Description: `confiture manages versioned PostgreSQL schema migrations. It can analyze
pending migrations before running them (classification, impact, lock, and
cost analysis), apply them sequentially under savepoints, and bulk-load
seed data through the COPY protocol.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "the confiture config file",
				Sources: cli.EnvVars("CONFITURE_CONFIG"),
				Value:   consts.ConfigFile,
			},
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "the project directory",
				Value:       ".",
				DefaultText: "Current directory",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if dir := cmd.String("dir"); dir != "." {
				// Create the project directory on first use so that
				// `confiture --dir new-project init` works.
				if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
					return ctx, err
				}
				if err := os.Chdir(dir); err != nil {
					return ctx, err
				}
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			build(),
			initCmd(),
			migrate(),
			seed(),
		},
	}

	return app.Run(ctx, args)
}

// loadConfig reads the project configuration named by the global flag,
// falling back to defaults when the file does not exist.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadConfig(emptyConfig())
	}

	return config.LoadConfigFile(path)
}

// newEngine wires a configured Engine for commands that talk to the target
// database.
func newEngine(ctx context.Context, cmd *cli.Command) (*executor.Engine, *postgres.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	client, err := postgres.NewClient(ctx, cfg.DatabaseURL(cmd.String("url")))
	if err != nil {
		return nil, nil, err
	}

	engine, err := executor.NewEngine(client, projectFS(), cfg, slog.Default())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return engine, client, nil
}

// projectFS exposes the working directory as an fs.FS rooted where the
// config's relative paths resolve.
func projectFS() fs.FS {
	return os.DirFS(".")
}

// outputFormat parses the --format flag shared by reporting commands.
func outputFormat(cmd *cli.Command) (format.Format, error) {
	return format.Parse(cmd.String("format"))
}

// emptyConfig yields a config document that decodes to all defaults.
func emptyConfig() io.Reader {
	return strings.NewReader("{}")
}
