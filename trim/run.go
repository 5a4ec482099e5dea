// Package trim removes rarely visited chunks from the region files of a world.
//
// Each region file is parsed completely, every chunk is decided against the
// InhabitedTime threshold, and the file is rewritten only when something is removed.
// Files are independent and are processed on a bounded pool of workers.
package trim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Result aggregates the summaries of one run.
type Result struct {
	RunID  string
	DryRun bool
	Files  []FileSummary

	ChunksTotal   int
	ChunksRemoved int
	BytesBefore   int64
	BytesAfter    int64

	// HardFailures counts files that could not be processed.
	HardFailures int
	// SoftFailures counts chunks kept because they could not be decoded.
	SoftFailures int
	// Skipped counts files never started because the run was cancelled.
	Skipped int

	Duration time.Duration
}

// BytesFreed is the space reclaimed, or that would be reclaimed on a dry run.
func (r *Result) BytesFreed() int64 {
	return r.BytesBefore - r.BytesAfter
}

// Failed reports whether any file failed.
func (r *Result) Failed() bool {
	return r.HardFailures > 0
}

// Run processes every region file of the configured dimensions. The returned error is
// limited to problems that prevent the run from starting; per-file failures are in the
// Result.
//
// Cancelling ctx stops new files from being started. Files already being processed run
// to completion so none is left half-written.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := &Result{RunID: uuid.NewString(), DryRun: cfg.DryRun}
	log := cfg.Log.WithField("run", result.RunID)

	files, err := Discover(cfg.Fs, cfg.World, cfg.Dimensions)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"world":     cfg.World,
		"files":     len(files),
		"threshold": cfg.Threshold,
		"workers":   cfg.Workers,
		"dry_run":   cfg.DryRun,
	}).Info("processing region files")

	summaries := make([]FileSummary, len(files))
	var (
		mu   sync.Mutex
		done int
	)
	progress := func(s FileSummary) {
		if cfg.Progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done++
		cfg.Progress(done, len(files), s)
	}

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i, file := range files {
		if ctx.Err() != nil {
			summaries[i] = skipped(file)
			continue
		}
		i, file := i, file
		g.Go(func() error {
			if ctx.Err() != nil {
				summaries[i] = skipped(file)
				return nil
			}
			summaries[i] = processFile(&cfg, log, file)
			if summaries[i].Err != nil {
				log.WithField("region", file.Path).WithError(summaries[i].Err).Error("failed to process region file")
			}
			progress(summaries[i])
			return nil
		})
	}
	_ = g.Wait()

	result.Files = summaries
	for _, s := range summaries {
		result.add(s)
	}
	result.Duration = time.Since(start)
	return result, nil
}

func skipped(file RegionFile) FileSummary {
	return FileSummary{
		Path:      file.Path,
		Dimension: file.Dimension,
		RegionX:   file.X,
		RegionZ:   file.Z,
		Skipped:   true,
	}
}

func (r *Result) add(s FileSummary) {
	if s.Skipped {
		r.Skipped++
		return
	}
	r.ChunksTotal += s.ChunksTotal
	r.ChunksRemoved += s.ChunksRemoved
	r.BytesBefore += s.BytesBefore
	r.BytesAfter += s.BytesAfter
	r.SoftFailures += len(s.Warnings)
	if s.Err != nil {
		r.HardFailures++
	}
}
