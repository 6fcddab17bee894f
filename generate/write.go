package generate

import (
	"os"
	"path/filepath"

	"github.com/stubzen/stubzen/errors"
)

// writeFileAtomic writes content through a temp file in the target
// directory and renames it into place, so an interrupted run never
// leaves a truncated stub behind.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create stub directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".stubzen-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to write %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to close %s", tmpPath)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to chmod %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "failed to rename stub into place at %s", path)
	}
	return nil
}
