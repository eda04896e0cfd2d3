package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/confiture/confiture/pkg/cmd"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
)

// NB: These are set by GoReleaser during a build.
var (
	version string
	commit  string
	date    string
)

func main() {
	setupLogger()

	cli.VersionPrinter = func(c *cli.Command) {
		fmt.Fprintln(c.Writer, "Version:", version)
		fmt.Fprintln(c.Writer, "Commit:", commit)
		fmt.Fprintln(c.Writer, "Date:", date)
	}

	if err := cmd.Run(context.Background(), version, os.Args); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// setupLogger installs a tinted stderr handler, falling back to plain output
// when stderr is not a terminal.
func setupLogger() {
	level := slog.LevelInfo
	if os.Getenv("CONFITURE_DEBUG") != "" {
		level = slog.LevelDebug
	}

	isTTY := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		NoColor:    !isTTY,
		TimeFormat: "2006-01-02 15:04:05.000",
	}))

	slog.SetDefault(logger)
}
