package trim

import (
	"errors"
	iofs "io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// BackupExt is appended to the region file name inside the backup folder.
const BackupExt = ".zst"

// BackupPath returns where the backup of a region file goes: its path relative to the
// world folder, rebased onto BackupDir.
func BackupPath(cfg Config, file RegionFile) (string, error) {
	rel, err := filepath.Rel(cfg.World, file.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.BackupDir, rel) + BackupExt, nil
}

// backupRegion writes a zstd copy of data unless a backup of the file already exists. An
// existing backup predates every later trim and is never overwritten; written reports
// whether a new one was created. A backup that fails halfway is removed again.
func backupRegion(cfg *Config, file RegionFile, data []byte) (written bool, err error) {
	path, err := BackupPath(*cfg, file)
	if err != nil {
		return
	}
	if err = cfg.Fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}

	out, err := cfg.Fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, iofs.ErrExist) {
		return false, nil
	} else if err != nil {
		return
	}
	defer func() {
		if closeErr := out.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = cfg.Fs.Remove(path)
			written = false
		}
	}()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return
	}
	if _, err = zw.Write(data); err != nil {
		_ = zw.Close()
		return
	}
	if err = zw.Close(); err != nil {
		return
	}
	return true, out.Sync()
}
