package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/astei/anviltrim/trim"
)

var (
	errNotConfirmed = errors.New("aborted")
	errNoTerminal   = errors.New("not running in a terminal, pass --yes to skip the confirmation")
)

// isTerminal reports whether stream, a reader or writer, is an interactive terminal.
func isTerminal(stream any) bool {
	f, ok := stream.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// confirm warns that chunks are deleted in place and waits for a yes.
func confirm(in io.Reader, out io.Writer, cfg trim.Config) error {
	warn := color.New(color.FgYellow, color.Bold)
	warn.Fprintln(out, "WARNING: chunks are deleted from the region files in place.")
	if cfg.BackupDir == "" {
		warn.Fprintf(out, "Make a backup of %s before continuing.\n", cfg.World)
	}
	fmt.Fprintf(out, "Chunks with InhabitedTime below %d ticks (%.1f seconds) will be removed.\n",
		cfg.Threshold, float64(cfg.Threshold)/trim.TicksPerSecond)
	fmt.Fprint(out, "Continue? [y/N] ")

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errNotConfirmed
}
