package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/astei/anviltrim/trim"
)

type chunkReport struct {
	X     int    `json:"x"`
	Z     int    `json:"z"`
	Error string `json:"error"`
}

type fileReport struct {
	Path               string        `json:"path"`
	Dimension          string        `json:"dimension"`
	RegionX            int           `json:"region_x"`
	RegionZ            int           `json:"region_z"`
	ChunksTotal        int           `json:"chunks_total"`
	ChunksRemoved      int           `json:"chunks_removed"`
	ChunksRecompressed int           `json:"chunks_recompressed,omitempty"`
	BytesBefore        int64         `json:"bytes_before"`
	BytesAfter         int64         `json:"bytes_after"`
	Rewritten          bool          `json:"rewritten"`
	Skipped            bool          `json:"skipped,omitempty"`
	Warnings           []chunkReport `json:"warnings,omitempty"`
	Error              string        `json:"error,omitempty"`
}

type runReport struct {
	RunID         string       `json:"run_id"`
	DryRun        bool         `json:"dry_run"`
	Threshold     int64        `json:"threshold_ticks"`
	Files         []fileReport `json:"files"`
	ChunksTotal   int          `json:"chunks_total"`
	ChunksRemoved int          `json:"chunks_removed"`
	BytesBefore   int64        `json:"bytes_before"`
	BytesAfter    int64        `json:"bytes_after"`
	BytesFreed    int64        `json:"bytes_freed"`
	HardFailures  int          `json:"hard_failures"`
	SoftFailures  int          `json:"soft_failures"`
	Skipped       int          `json:"skipped"`
	DurationMs    int64        `json:"duration_ms"`
}

func newRunReport(cfg trim.Config, r *trim.Result) runReport {
	report := runReport{
		RunID:         r.RunID,
		DryRun:        r.DryRun,
		Threshold:     cfg.Threshold,
		Files:         make([]fileReport, 0, len(r.Files)),
		ChunksTotal:   r.ChunksTotal,
		ChunksRemoved: r.ChunksRemoved,
		BytesBefore:   r.BytesBefore,
		BytesAfter:    r.BytesAfter,
		BytesFreed:    r.BytesFreed(),
		HardFailures:  r.HardFailures,
		SoftFailures:  r.SoftFailures,
		Skipped:       r.Skipped,
		DurationMs:    r.Duration.Milliseconds(),
	}
	for _, f := range r.Files {
		fr := fileReport{
			Path:               f.Path,
			Dimension:          f.Dimension,
			RegionX:            f.RegionX,
			RegionZ:            f.RegionZ,
			ChunksTotal:        f.ChunksTotal,
			ChunksRemoved:      f.ChunksRemoved,
			ChunksRecompressed: f.ChunksRecompressed,
			BytesBefore:        f.BytesBefore,
			BytesAfter:         f.BytesAfter,
			Rewritten:          f.Rewritten,
			Skipped:            f.Skipped,
		}
		for _, w := range f.Warnings {
			fr.Warnings = append(fr.Warnings, chunkReport{X: w.X, Z: w.Z, Error: w.Err.Error()})
		}
		if f.Err != nil {
			fr.Error = f.Err.Error()
		}
		report.Files = append(report.Files, fr)
	}
	return report
}

type progressReport struct {
	Processing struct {
		Progress int    `json:"progress"`
		Total    int    `json:"total"`
		Path     string `json:"path"`
		Removed  int    `json:"chunks_removed"`
		Error    string `json:"error,omitempty"`
	} `json:"processing"`
}

// jsonProgress streams one {"processing": ...} line per finished file. The final report
// follows as the last line.
func jsonProgress(w io.Writer) func(done, total int, s trim.FileSummary) {
	enc := json.NewEncoder(w)
	return func(done, total int, s trim.FileSummary) {
		var p progressReport
		p.Processing.Progress = done
		p.Processing.Total = total
		p.Processing.Path = s.Path
		p.Processing.Removed = s.ChunksRemoved
		if s.Err != nil {
			p.Processing.Error = s.Err.Error()
		}
		_ = enc.Encode(p)
	}
}

// textProgress redraws a single status line.
func textProgress(w io.Writer) func(done, total int, s trim.FileSummary) {
	return func(done, total int, s trim.FileSummary) {
		fmt.Fprintf(w, "\r\033[K[%d/%d] %s", done, total, s.Path)
		if done == total {
			fmt.Fprintln(w)
		}
	}
}

func writeJSONReport(w io.Writer, cfg trim.Config, r *trim.Result) error {
	return json.NewEncoder(w).Encode(newRunReport(cfg, r))
}

func writeTextReport(w io.Writer, r *trim.Result) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)

	for _, f := range r.Files {
		if f.Err != nil {
			red.Fprintf(w, "failed  %s: %v\n", f.Path, f.Err)
		}
	}

	verb := "Freed"
	if r.DryRun {
		bold.Fprintln(w, "Dry run, no region file was modified.")
		verb = "Would free"
	}
	fmt.Fprintf(w, "Region files:    %s processed, %s failed, %s skipped\n",
		humanize.Comma(int64(len(r.Files)-r.Skipped)), humanize.Comma(int64(r.HardFailures)), humanize.Comma(int64(r.Skipped)))
	fmt.Fprintf(w, "Chunks:          %s of %s removed\n",
		humanize.Comma(int64(r.ChunksRemoved)), humanize.Comma(int64(r.ChunksTotal)))
	if r.SoftFailures > 0 {
		fmt.Fprintf(w, "Unreadable:      %s chunks kept\n", humanize.Comma(int64(r.SoftFailures)))
	}
	bold.Fprintf(w, "%s %s (%s to %s)\n", verb, humanize.IBytes(uint64(max(r.BytesFreed(), 0))),
		humanize.IBytes(uint64(r.BytesBefore)), humanize.IBytes(uint64(r.BytesAfter)))
	fmt.Fprintf(w, "Took %s\n", r.Duration.Round(time.Millisecond))
}
