package trim

import (
	"errors"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// MissingCounterPolicy decides the fate of chunks that carry no InhabitedTime field.
type MissingCounterPolicy int

const (
	// KeepMissing keeps chunks without a counter.
	KeepMissing MissingCounterPolicy = iota
	// RemoveMissing treats a missing counter as zero.
	RemoveMissing
)

func (p MissingCounterPolicy) String() string {
	if p == RemoveMissing {
		return "remove"
	}
	return "keep"
}

// Config holds everything a run needs. It is passed by value into every step; nothing
// is kept in package state.
type Config struct {
	// World is the world folder, the one holding level.dat.
	World string

	// Threshold is compared against InhabitedTime in game ticks. Chunks with a counter
	// strictly below it are removed.
	Threshold int64

	// DryRun computes decisions and projected sizes but writes nothing.
	DryRun bool

	// Dimensions limits the run to the named dimensions. Empty means all of them.
	Dimensions []string

	// MissingCounter decides chunks without InhabitedTime. Defaults to KeepMissing.
	MissingCounter MissingCounterPolicy

	// Workers bounds how many region files are processed at once.
	// Defaults to the number of CPUs.
	Workers int

	// Recompress re-encodes kept gzip chunks as zlib when that makes them smaller.
	Recompress bool

	// BackupDir, when set, receives a zstd-compressed copy of every region file before
	// it is replaced. A backup that already exists is kept, so the folder always holds
	// the state before the first trim.
	BackupDir string

	// Fs is the filesystem the world lives on. Defaults to the OS filesystem.
	Fs afero.Fs

	// Progress, when set, is called by Run after every finished file with the number of
	// files done so far and the total. Calls never overlap.
	Progress func(done, total int, summary FileSummary)

	// Log receives per-file outcomes and chunk warnings.
	// Defaults to logrus.StandardLogger().
	Log logrus.FieldLogger
}

// DefaultConfig returns a configuration for world with the default policy and one
// worker per CPU.
func DefaultConfig(world string) Config {
	return Config{
		World:          world,
		MissingCounter: KeepMissing,
		Workers:        runtime.NumCPU(),
		Fs:             afero.NewOsFs(),
		Log:            logrus.StandardLogger(),
	}
}

func (c *Config) normalize() error {
	if c.World == "" {
		return errors.New("trim: no world folder given")
	}
	if c.Threshold < 0 {
		return errors.New("trim: threshold must not be negative")
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Fs == nil {
		c.Fs = afero.NewOsFs()
	}
	if c.Log == nil {
		c.Log = logrus.StandardLogger()
	}
	return nil
}
