package cmd

import (
	"context"

	"github.com/confiture/confiture/pkg/project"
	"github.com/urfave/cli/v3"
)

// initCmd initializes a confiture project in the current directory. The
// command is idempotent: existing files are never overwritten, so it is safe
// to run in a populated directory.
//
// Created structure:
//   - confiture.yaml: project configuration
//   - db/schema.sql: schema entrypoint for the build command
//   - db/migrations/: versioned migration files
//   - db/seeds/: seed files
//
// Example usage:
//
//	# Initialize a project in the current directory
//	confiture init
//
//	# Initialize with the connection URL baked into the config
//	confiture init --url postgres://localhost:5432/app?sslmode=disable
func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a project in the current directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "PostgreSQL connection URL to write into the configuration",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// The root command's Before hook has already changed into the
			// project directory.
			return project.New(".").Initialize(project.InitOptions{
				DatabaseURL: cmd.String("url"),
			})
		},
	}
}
