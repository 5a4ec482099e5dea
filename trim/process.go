package trim

import (
	"bytes"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/astei/anviltrim/anvil"
	"github.com/astei/anviltrim/nbt"
)

// ChunkWarning records a chunk that was kept because it could not be decoded.
type ChunkWarning struct {
	X, Z int
	Err  error
}

// FileSummary is the outcome of one region file.
type FileSummary struct {
	Path      string
	Dimension string
	RegionX   int
	RegionZ   int

	ChunksTotal        int
	ChunksRemoved      int
	ChunksRecompressed int

	BytesBefore int64
	// BytesAfter is the size after the rewrite, or the projected size on a dry run.
	BytesAfter int64

	Rewritten bool
	Skipped   bool
	Warnings  []ChunkWarning
	Err       error
}

// ProcessFile reads, filters and compacts a single region file. Errors are reported in
// the summary; the original file is only ever replaced atomically.
func ProcessFile(cfg Config, file RegionFile) FileSummary {
	if err := cfg.normalize(); err != nil {
		return FileSummary{Path: file.Path, Err: err}
	}
	return processFile(&cfg, cfg.Log, file)
}

func processFile(cfg *Config, log logrus.FieldLogger, file RegionFile) FileSummary {
	summary := FileSummary{
		Path:      file.Path,
		Dimension: file.Dimension,
		RegionX:   file.X,
		RegionZ:   file.Z,
	}
	log = log.WithFields(logrus.Fields{"region": file.Path, "dimension": file.Dimension})

	data, err := afero.ReadFile(cfg.Fs, file.Path)
	if err != nil {
		summary.Err = fmt.Errorf("read region: %w", err)
		return summary
	}
	summary.BytesBefore = int64(len(data))
	summary.BytesAfter = summary.BytesBefore

	region, err := anvil.Parse(data)
	if err != nil {
		summary.Err = err
		return summary
	}
	summary.ChunksTotal = region.Occupied()

	plan := planRegion(cfg, log, region, &summary)
	if summary.ChunksRemoved == 0 && summary.ChunksRecompressed == 0 {
		log.WithField("chunks", summary.ChunksTotal).Debug("region untouched")
		return summary
	}

	image, err := anvil.Compact(region, plan)
	if err != nil {
		summary.Err = fmt.Errorf("compact region: %w", err)
		return summary
	}
	if _, err = anvil.Parse(image); err != nil {
		summary.Err = fmt.Errorf("compacted region failed validation: %w", err)
		return summary
	}

	fields := logrus.Fields{
		"chunks":  summary.ChunksTotal,
		"removed": summary.ChunksRemoved,
		"before":  summary.BytesBefore,
		"after":   len(image),
	}
	if cfg.DryRun {
		summary.BytesAfter = int64(len(image))
		log.WithFields(fields).Info("region would be rewritten")
		return summary
	}

	if cfg.BackupDir != "" {
		written, err := backupRegion(cfg, file, data)
		if err != nil {
			summary.Err = fmt.Errorf("back up region: %w", err)
			return summary
		}
		if !written {
			log.Debug("keeping existing backup")
		}
	}
	if err = anvil.ReplaceFile(cfg.Fs, file.Path, image); err != nil {
		summary.Err = fmt.Errorf("replace region: %w", err)
		return summary
	}

	summary.BytesAfter = int64(len(image))
	summary.Rewritten = true
	log.WithFields(fields).Info("region rewritten")
	return summary
}

// planRegion decides every occupied slot. Chunks that cannot be decoded are kept.
func planRegion(cfg *Config, log logrus.FieldLogger, region *anvil.Region, summary *FileSummary) *anvil.Plan {
	var plan anvil.Plan
	for i, slot := range region.Slots {
		if slot.Empty() {
			continue
		}
		x, z := anvil.SlotCoords(i)

		chunk, tree, err := readSlot(slot)
		if err != nil {
			plan[i].Keep = true
			summary.Warnings = append(summary.Warnings, ChunkWarning{X: x, Z: z, Err: err})
			log.WithFields(logrus.Fields{"x": x, "z": z}).WithError(err).Warn("keeping chunk that could not be decoded")
			continue
		}

		if Decide(tree, cfg.Threshold, cfg.MissingCounter) == Remove {
			summary.ChunksRemoved++
			continue
		}
		plan[i].Keep = true

		if cfg.Recompress {
			if payload := recompress(chunk, tree); payload != nil {
				plan[i].Payload = payload
				summary.ChunksRecompressed++
			}
		}
	}
	return &plan
}

func readSlot(slot anvil.Slot) (anvil.Chunk, *nbt.Tree, error) {
	chunk, err := anvil.ReadChunk(slot.Payload)
	if err != nil {
		return chunk, nil, err
	}
	tree, err := chunk.Decode()
	return chunk, tree, err
}

// recompress re-encodes a kept chunk with the preferred scheme. It returns nil when the
// chunk already uses it or the result would not occupy fewer bytes.
func recompress(chunk anvil.Chunk, tree *nbt.Tree) []byte {
	scheme := anvil.ReencodeScheme(chunk.Compression)
	if scheme == chunk.Compression {
		return nil
	}

	payload, err := anvil.EncodeChunk(scheme, tree)
	if err != nil || len(payload) >= len(chunk.Framed) {
		return nil
	}

	// The tree must come back unchanged before the original bytes are given up.
	raw, err := chunk.Raw()
	if err != nil {
		return nil
	}
	check, err := anvil.ReadChunk(payload)
	if err != nil {
		return nil
	}
	if again, err := check.Raw(); err != nil || !bytes.Equal(raw, again) {
		return nil
	}
	return payload
}
