package cmd

import (
	"context"
	"os"

	"github.com/confiture/confiture/pkg/copyconv"
	"github.com/confiture/confiture/pkg/executor"
	"github.com/confiture/confiture/pkg/format"
	"github.com/urfave/cli/v3"
)

// seed returns the seed command group.
func seed() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load seed data into the target database",
		Commands: []*cli.Command{
			seedApply(),
		},
	}
}

// seedApply applies every seed file in the configured seed directory.
//
// Example usage:
//
//	# Preview which INSERTs would convert to COPY without touching the database
//	confiture seed apply --dry-run --copy-format
//
//	# Load seeds, bulk-loading large INSERTs through COPY
//	confiture seed apply --copy-format
func seedApply() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Apply all seed files in lexicographic order",
		Flags: append(sharedFlags(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "report COPY conversion eligibility without executing anything",
			},
			&cli.BoolFlag{
				Name:  "continue-on-error",
				Usage: "keep applying later seed files after one fails",
			},
			&cli.BoolFlag{
				Name:  "copy-format",
				Usage: "convert eligible INSERT statements to COPY bulk loads",
			},
			&cli.BoolFlag{
				Name:  "sequential",
				Usage: "apply each seed file as its own savepoint-guarded unit",
				Value: true,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			f, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			if cmd.Bool("dry-run") {
				return seedDryRun(cmd, f)
			}

			engine, client, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			result, err := engine.SeedApply(ctx, executor.SeedOptions{
				ContinueOnError: cmd.Bool("continue-on-error"),
				CopyFormat:      cmd.Bool("copy-format"),
				Sequential:      cmd.Bool("sequential"),
			})
			if err != nil {
				return err
			}

			if cmd.Bool("copy-format") && result.Conversion != nil {
				if err := format.Conversion(os.Stdout, f, result.Conversion); err != nil {
					return err
				}
			}

			return format.Run(os.Stdout, f, result.Run)
		},
	}
}

// seedDryRun reports conversion eligibility for every seed statement without
// opening a database connection.
func seedDryRun(cmd *cli.Command, f format.Format) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	files, err := copyconv.LoadSeedDir(projectFS(), cfg.Seeds.Dir)
	if err != nil {
		return err
	}

	report := &copyconv.ConversionReport{}
	for _, file := range files {
		r := copyconv.ConvertScript(file.SQL)
		report.TotalStatements += r.TotalStatements
		report.Converted += r.Converted
		report.Fallback += r.Fallback
		report.Results = append(report.Results, r.Results...)
	}
	report.AttachBatches(cfg.Seeds.CopyThreshold)

	return format.Conversion(os.Stdout, f, report)
}
