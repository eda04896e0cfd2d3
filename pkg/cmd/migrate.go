package cmd

import (
	"context"
	"os"

	"github.com/confiture/confiture/pkg/executor"
	"github.com/confiture/confiture/pkg/format"
	"github.com/urfave/cli/v3"
)

// migrate returns the migrate command group: up, down, status, validate,
// and diff.
func migrate() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply, roll back, and inspect schema migrations",
		Commands: []*cli.Command{
			migrateUp(),
			migrateDown(),
			migrateStatus(),
			migrateValidate(),
			migrateDiff(),
		},
	}
}

// sharedFlags are accepted by every migrate subcommand that touches the
// target database.
func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Aliases: []string{"u"},
			Usage:   "PostgreSQL connection URL",
			Sources: cli.EnvVars("CONFITURE_DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "output format: text, json, or csv",
			Value:   "text",
		},
	}
}

// migrateUp applies (or analyzes, with --dry-run) all pending migrations.
//
// Example usage:
//
//	# Analyze pending migrations without touching anything
//	confiture migrate up --dry-run
//
//	# Profile pending migrations by executing and rolling back each statement
//	confiture migrate up --dry-run --execute
//
//	# Apply, converting large INSERTs to COPY
//	confiture migrate up --copy-format
func migrateUp() *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "Apply all pending migrations",
		Flags: append(sharedFlags(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "analyze pending migrations without applying them",
			},
			&cli.BoolFlag{
				Name:  "execute",
				Usage: "with --dry-run, execute each statement under a savepoint and roll back",
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "with --dry-run, exit non-zero when any statement classifies unsafe",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "bypass collision/drift validation and treat all migrations as pending (development recovery only)",
			},
			&cli.BoolFlag{
				Name:  "continue-on-error",
				Usage: "keep applying later migrations after one fails",
			},
			&cli.BoolFlag{
				Name:  "copy-format",
				Usage: "convert eligible INSERT statements to COPY bulk loads",
			},
			&cli.BoolFlag{
				Name:  "sequential",
				Usage: "apply each migration file as its own savepoint-guarded unit",
				Value: true,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			engine, client, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			result, err := engine.Up(ctx, executor.UpOptions{
				DryRun:          cmd.Bool("dry-run"),
				Execute:         cmd.Bool("execute"),
				Force:           cmd.Bool("force"),
				ContinueOnError: cmd.Bool("continue-on-error"),
				CopyFormat:      cmd.Bool("copy-format"),
				Sequential:      cmd.Bool("sequential"),
			})
			if err != nil {
				return err
			}

			if result.Reports != nil {
				if err := format.Reports(os.Stdout, f, result.Reports); err != nil {
					return err
				}
				if cmd.Bool("strict") {
					for _, report := range result.Reports {
						if report.HasUnsafeStatements {
							return cli.Exit("unsafe statements detected in strict mode", 1)
						}
					}
				}
				return nil
			}

			if result.Run != nil {
				return format.Run(os.Stdout, f, result.Run)
			}

			return nil
		},
	}
}

// migrateDown rolls back the most recently applied migrations using their
// down scripts.
func migrateDown() *cli.Command {
	return &cli.Command{
		Name:  "down",
		Usage: "Roll back the most recently applied migration",
		Flags: append(sharedFlags(),
			&cli.IntFlag{
				Name:  "steps",
				Usage: "number of migrations to roll back",
				Value: 1,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			engine, client, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			run, err := engine.Down(ctx, int(cmd.Int("steps")))
			if err != nil {
				return err
			}

			return format.Run(os.Stdout, f, run)
		},
	}
}

// migrateStatus lists every migration with its tracked state.
func migrateStatus() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show applied and pending migrations",
		Flags: sharedFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			engine, client, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			entries, err := engine.Status(ctx)
			if err != nil {
				return err
			}

			return format.Status(os.Stdout, f, entries)
		},
	}
}

// migrateValidate checks the on-disk migration set against tracked state.
func migrateValidate() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check migrations for version collisions and checksum drift",
		Flags: sharedFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			engine, client, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := engine.Validate(ctx); err != nil {
				return err
			}

			_, err = os.Stdout.WriteString("migrations are valid\n")

			return err
		},
	}
}

// migrateDiff summarizes divergence between disk and tracked state.
func migrateDiff() *cli.Command {
	return &cli.Command{
		Name:  "diff",
		Usage: "Show pending, drifted, and missing migrations",
		Flags: sharedFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			engine, client, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			diff, err := engine.DiffState(ctx)
			if err != nil {
				return err
			}

			return format.DiffState(os.Stdout, f, diff)
		},
	}
}
