package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/astei/anviltrim/trim"
)

var errRunFailed = errors.New("some region files could not be processed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		stop()
		logrus.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "anviltrim",
		Usage:     "removes rarely visited chunks from the region files of a world",
		ArgsUsage: "[world]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: keyWorld, Aliases: []string{"w"}, Usage: "world folder, the one holding level.dat"},
			&cli.Int64Flag{Name: keyMaxInhabitedTime, Aliases: []string{"m"}, Usage: "remove chunks inhabited for at most this many `SECONDS`"},
			&cli.Int64Flag{Name: keyThresholdTicks, Usage: "remove chunks with InhabitedTime below this many `TICKS`, overrides --max-inhabited-time"},
			&cli.IntFlag{Name: keyThreads, Aliases: []string{"t"}, Usage: "region files processed at once (default: number of CPUs)"},
			&cli.BoolFlag{Name: keyDryRun, Usage: "report what would be removed without writing anything"},
			&cli.StringSliceFlag{Name: keyDimension, Aliases: []string{"d"}, Usage: "only process this dimension (overworld, nether, end or namespace:name), repeatable"},
			&cli.BoolFlag{Name: keyRemoveMissing, Usage: "also remove chunks that have no InhabitedTime"},
			&cli.BoolFlag{Name: keyRecompress, Usage: "re-encode kept gzip chunks as zlib when smaller"},
			&cli.StringFlag{Name: keyBackupDir, Usage: "write a zstd copy of every region file to `DIR` before replacing it"},
			&cli.BoolFlag{Name: keyYes, Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
			&cli.BoolFlag{Name: keyForce, Usage: "skip the level.dat world check"},
			&cli.BoolFlag{Name: keyJSON, Usage: "print the report as JSON"},
			&cli.StringFlag{Name: keyConfig, Usage: "read options from `FILE` (yaml, toml or json)"},
			&cli.StringFlag{Name: keyLogLevel, Usage: "debug, info, warn or error (default: info)"},
			&cli.StringFlag{Name: keyLogFile, Usage: "write logs to `FILE`, rotated"},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	v, err := loadViper(c)
	if err != nil {
		return err
	}
	opts, err := buildOptions(v)
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(c.App.ErrWriter, opts.logLevel, opts.logFile)
	if err != nil {
		return err
	}
	defer closer.Close()
	opts.trim.Log = logger

	if !opts.force {
		if err = trim.ValidateWorld(opts.trim.Fs, opts.trim.World); err != nil {
			return err
		}
	}

	if !opts.yes && !opts.trim.DryRun {
		if !isTerminal(c.App.Reader) {
			return errNoTerminal
		}
		if err = confirm(c.App.Reader, c.App.Writer, opts.trim); err != nil {
			return err
		}
	}

	switch {
	case opts.json:
		opts.trim.Progress = jsonProgress(c.App.Writer)
	case isTerminal(c.App.ErrWriter) && opts.logFile != "":
		// Progress shares the terminal with log lines unless those go to a file.
		opts.trim.Progress = textProgress(c.App.ErrWriter)
	}

	result, err := trim.Run(c.Context, opts.trim)
	if err != nil {
		return err
	}

	if opts.json {
		err = writeJSONReport(c.App.Writer, opts.trim, result)
	} else {
		writeTextReport(c.App.Writer, result)
	}
	if err != nil {
		return err
	}
	if result.Failed() {
		return errRunFailed
	}
	if result.Skipped > 0 {
		return c.Context.Err()
	}
	return nil
}
