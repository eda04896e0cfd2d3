package cmd

import (
	"context"
	"io"
	"os"

	"github.com/confiture/confiture/pkg/builder"
	"github.com/confiture/confiture/pkg/consts"
	"github.com/urfave/cli/v3"
)

// build compiles an entrypoint schema file and its includes into one SQL
// document.
//
// Example usage:
//
//	# Compile db/schema.sql to stdout
//	confiture build
//
//	# Compile a specific entrypoint to a file
//	confiture build --out schema.sql db/main.sql
func build() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Compile a schema entrypoint and its includes into one SQL file",
		ArgsUsage: "[entrypoint]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write the compiled SQL to this file instead of stdout",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			entry := cmd.Args().First()
			if entry == "" {
				entry = consts.DefaultSchemaFile
			}

			var w io.Writer = os.Stdout
			if out := cmd.String("out"); out != "" {
				f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, consts.ModeFile)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			return builder.Compile(entry, w)
		},
	}
}
