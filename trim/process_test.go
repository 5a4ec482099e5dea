package trim_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"

	"github.com/astei/anviltrim/anvil"
	"github.com/astei/anviltrim/anvil/anviltest"
	"github.com/astei/anviltrim/trim"
)

const regionPath = "/world/region/r.0.0.mca"

func writeRegion(t *testing.T, fs afero.Fs, path string, image []byte) {
	t.Helper()
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, path, image, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readRegion(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func testConfig(fs afero.Fs, threshold int64) trim.Config {
	logger, _ := test.NewNullLogger()
	cfg := trim.DefaultConfig("/world")
	cfg.Fs = fs
	cfg.Log = logger
	cfg.Threshold = threshold
	cfg.Workers = 2
	return cfg
}

func overworldFile(path string) trim.RegionFile {
	x, z, _ := anvil.ParseRegionName(filepath.Base(path))
	return trim.RegionFile{Path: path, Dimension: trim.Overworld.Name, X: x, Z: z}
}

func TestProcessFileRemovesInactiveChunk(t *testing.T) {
	fs := afero.NewMemMapFs()
	slotA, slotB := anvil.SlotIndex(1, 1), anvil.SlotIndex(20, 30)
	payloadB := anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(20, 30, 5000))
	original := anviltest.Build(map[int][]byte{
		slotA: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(1, 1, 50)),
		slotB: payloadB,
	}, 0)
	writeRegion(t, fs, regionPath, original)

	summary := trim.ProcessFile(testConfig(fs, 100), overworldFile(regionPath))
	if summary.Err != nil {
		t.Fatal(summary.Err)
	}
	if summary.ChunksTotal != 2 || summary.ChunksRemoved != 1 || !summary.Rewritten {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.BytesBefore != int64(len(original)) || summary.BytesAfter != anvil.HeaderSize+anvil.SectorSize {
		t.Fatalf("bytes before %d after %d", summary.BytesBefore, summary.BytesAfter)
	}

	data := readRegion(t, fs, regionPath)
	if int64(len(data)) != summary.BytesAfter {
		t.Fatalf("file is %d bytes, summary says %d", len(data), summary.BytesAfter)
	}
	region, err := anvil.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if region.Occupied() != 1 || !region.Slots[slotA].Empty() {
		t.Fatal("inactive chunk still present")
	}
	if !bytes.HasPrefix(region.Slots[slotB].Payload, payloadB) {
		t.Fatal("active chunk not kept byte for byte")
	}
}

func TestProcessFileEmptyRegionUntouched(t *testing.T) {
	fs := afero.NewMemMapFs()
	original := make([]byte, anvil.HeaderSize)
	writeRegion(t, fs, regionPath, original)
	before, err := fs.Stat(regionPath)
	if err != nil {
		t.Fatal(err)
	}

	summary := trim.ProcessFile(testConfig(fs, 1000), overworldFile(regionPath))
	if summary.Err != nil {
		t.Fatal(summary.Err)
	}
	if summary.ChunksTotal != 0 || summary.Rewritten {
		t.Fatalf("summary = %+v", summary)
	}

	after, err := fs.Stat(regionPath)
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().Equal(before.ModTime()) || !bytes.Equal(readRegion(t, fs, regionPath), original) {
		t.Fatal("empty region was rewritten")
	}
}

func TestProcessFileNothingToRemove(t *testing.T) {
	fs := afero.NewMemMapFs()
	// Gaps between chunks would be reclaimed by a rewrite, so an untouched file keeps them.
	original := anviltest.Build(map[int][]byte{
		0: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(0, 0, 500)),
		1: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(1, 0, 600)),
	}, 2)
	writeRegion(t, fs, regionPath, original)

	summary := trim.ProcessFile(testConfig(fs, 100), overworldFile(regionPath))
	if summary.Err != nil || summary.Rewritten || summary.ChunksTotal != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if !bytes.Equal(readRegion(t, fs, regionPath), original) {
		t.Fatal("region changed although nothing was removed")
	}
}

func TestProcessFileCorruptRegion(t *testing.T) {
	fs := afero.NewMemMapFs()
	original := anviltest.Build(map[int][]byte{
		0: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(0, 0, 1)),
		1: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(1, 0, 1)),
	}, 0)
	anviltest.SetLocation(original, 1, 2, 1)
	writeRegion(t, fs, regionPath, original)

	summary := trim.ProcessFile(testConfig(fs, 100), overworldFile(regionPath))
	if !errors.Is(summary.Err, anvil.ErrCorruptRegion) {
		t.Fatalf("Err = %v, want ErrCorruptRegion", summary.Err)
	}
	if !bytes.Equal(readRegion(t, fs, regionPath), original) {
		t.Fatal("corrupt region was modified")
	}
}

func TestProcessFileKeepsUndecodableChunks(t *testing.T) {
	fs := afero.NewMemMapFs()
	garbage := anvil.FrameChunk(anvil.CompressionZlib, []byte("definitely not zlib"))
	unknown := anvil.FrameChunk(7, []byte{1, 2, 3})
	original := anviltest.Build(map[int][]byte{
		0: garbage,
		1: unknown,
		2: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(2, 0, 1)),
	}, 0)
	writeRegion(t, fs, regionPath, original)

	logger, hook := test.NewNullLogger()
	cfg := testConfig(fs, 100)
	cfg.Log = logger

	summary := trim.ProcessFile(cfg, overworldFile(regionPath))
	if summary.Err != nil {
		t.Fatal(summary.Err)
	}
	if summary.ChunksRemoved != 1 || len(summary.Warnings) != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if !errors.Is(summary.Warnings[0].Err, anvil.ErrDecompressionFailed) || !errors.Is(summary.Warnings[1].Err, anvil.ErrUnsupportedCompression) {
		t.Fatalf("warnings = %+v", summary.Warnings)
	}

	warnings := 0
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings++
		}
	}
	if warnings != 2 {
		t.Fatalf("logged %d warnings, want 2", warnings)
	}

	region, err := anvil.Parse(readRegion(t, fs, regionPath))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(region.Slots[0].Payload, garbage) || !bytes.HasPrefix(region.Slots[1].Payload, unknown) {
		t.Fatal("undecodable chunks were not preserved")
	}
	if !region.Slots[2].Empty() {
		t.Fatal("inactive chunk still present")
	}
}

func TestProcessFileDryRun(t *testing.T) {
	fs := afero.NewMemMapFs()
	original := anviltest.Build(map[int][]byte{
		0: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(0, 0, 1)),
		1: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(1, 0, 1000)),
	}, 0)
	writeRegion(t, fs, regionPath, original)

	cfg := testConfig(fs, 100)
	cfg.DryRun = true
	summary := trim.ProcessFile(cfg, overworldFile(regionPath))
	if summary.Err != nil {
		t.Fatal(summary.Err)
	}
	if summary.Rewritten || summary.ChunksRemoved != 1 || summary.BytesAfter >= summary.BytesBefore {
		t.Fatalf("summary = %+v", summary)
	}
	if !bytes.Equal(readRegion(t, fs, regionPath), original) {
		t.Fatal("dry run modified the region")
	}
}

func TestProcessFileBackup(t *testing.T) {
	fs := afero.NewMemMapFs()
	original := anviltest.Build(map[int][]byte{
		0: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(0, 0, 1)),
	}, 0)
	writeRegion(t, fs, regionPath, original)

	cfg := testConfig(fs, 100)
	cfg.BackupDir = "/backup"
	summary := trim.ProcessFile(cfg, overworldFile(regionPath))
	if summary.Err != nil || !summary.Rewritten {
		t.Fatalf("summary = %+v", summary)
	}

	backupPath, err := trim.BackupPath(cfg, overworldFile(regionPath))
	if err != nil {
		t.Fatal(err)
	}
	if backupPath != "/backup/region/r.0.0.mca.zst" {
		t.Fatalf("BackupPath() = %s", backupPath)
	}

	if !bytes.Equal(readBackup(t, fs, backupPath), original) {
		t.Fatal("backup does not hold the original region")
	}
}

func readBackup(t *testing.T, fs afero.Fs, path string) []byte {
	t.Helper()
	f, err := fs.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestProcessFileKeepsFirstBackup(t *testing.T) {
	fs := afero.NewMemMapFs()
	original := anviltest.Build(map[int][]byte{
		0: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(0, 0, 50)),
		1: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(1, 0, 500)),
		2: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(2, 0, 5000)),
	}, 0)
	writeRegion(t, fs, regionPath, original)

	for _, threshold := range []int64{100, 1000} {
		cfg := testConfig(fs, threshold)
		cfg.BackupDir = "/backup"
		summary := trim.ProcessFile(cfg, overworldFile(regionPath))
		if summary.Err != nil || summary.ChunksRemoved != 1 || !summary.Rewritten {
			t.Fatalf("threshold %d: summary = %+v", threshold, summary)
		}
	}

	if !bytes.Equal(readBackup(t, fs, "/backup/region/r.0.0.mca.zst"), original) {
		t.Fatal("second run replaced the backup of the untrimmed region")
	}
}

func TestProcessFileRecompress(t *testing.T) {
	fs := afero.NewMemMapFs()
	tree := anviltest.ChunkTree(0, 0, 5000)
	original := anviltest.Build(map[int][]byte{
		0: anviltest.Payload(t, anvil.CompressionGzip, tree),
		1: anviltest.Payload(t, anvil.CompressionNone, anviltest.ChunkTree(1, 0, 5000)),
	}, 0)
	writeRegion(t, fs, regionPath, original)

	cfg := testConfig(fs, 100)
	cfg.Recompress = true
	summary := trim.ProcessFile(cfg, overworldFile(regionPath))
	if summary.Err != nil {
		t.Fatal(summary.Err)
	}
	if summary.ChunksRemoved != 0 || summary.ChunksRecompressed != 1 || !summary.Rewritten {
		t.Fatalf("summary = %+v", summary)
	}

	region, err := anvil.Parse(readRegion(t, fs, regionPath))
	if err != nil {
		t.Fatal(err)
	}
	chunk, err := anvil.ReadChunk(region.Slots[0].Payload)
	if err != nil {
		t.Fatal(err)
	}
	if chunk.Compression != anvil.CompressionZlib {
		t.Fatalf("slot 0 compression = %s, want zlib", chunk.Compression)
	}
	if !bytes.HasPrefix(region.Slots[0].Payload, anviltest.Payload(t, anvil.CompressionZlib, tree)) {
		t.Fatal("recompressed payload differs from a fresh zlib encoding")
	}
	if chunk, _ := anvil.ReadChunk(region.Slots[1].Payload); chunk.Compression != anvil.CompressionNone {
		t.Fatalf("uncompressed chunk was re-encoded as %s", chunk.Compression)
	}
}

var errDiskFull = errors.New("no space left on device")

type failingFs struct {
	afero.Fs
}

func (f failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || flag&(os.O_WRONLY|os.O_RDWR) == 0 {
		return file, err
	}
	return failingFile{file}, nil
}

type failingFile struct {
	afero.File
}

func (failingFile) Write([]byte) (int, error) {
	return 0, errDiskFull
}

func TestProcessFileWriteFailureLeavesOriginal(t *testing.T) {
	mem := afero.NewMemMapFs()
	original := anviltest.Build(map[int][]byte{
		0: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(0, 0, 1)),
		5: anviltest.Payload(t, anvil.CompressionZlib, anviltest.ChunkTree(5, 0, 1000)),
	}, 0)
	writeRegion(t, mem, regionPath, original)

	summary := trim.ProcessFile(testConfig(failingFs{mem}, 100), overworldFile(regionPath))
	if !errors.Is(summary.Err, errDiskFull) || summary.Rewritten {
		t.Fatalf("summary = %+v", summary)
	}
	if !bytes.Equal(readRegion(t, mem, regionPath), original) {
		t.Fatal("original changed after a failed write")
	}

	entries, err := afero.ReadDir(mem, filepath.Dir(regionPath))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary file left behind: %d entries", len(entries))
	}
}
