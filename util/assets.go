package util

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CopyAsset copies a bundled file to an app-writable location unless the target
// already exists. The copy is written to a temporary file first and renamed into
// place, so a partial copy never shadows the asset.
//
// Arguments:
//   - src: The bundled file.
//   - dst: The target path; parent directories are created.
//
// Returns:
//   - bool: True if the file was copied, false if dst already existed.
//   - error: If src cannot be read or dst cannot be written.
func CopyAsset(src, dst string) (bool, error) {
	if _, err := os.Stat(dst); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, errors.Wrapf(err, "failed to stat %s", dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return false, errors.Wrapf(err, "failed to open asset %s", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return false, errors.Wrapf(err, "failed to create %s", filepath.Dir(dst))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return false, errors.Wrap(err, "failed to create temporary file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return false, errors.Wrapf(err, "failed to copy %s", src)
	}
	if err := tmp.Close(); err != nil {
		return false, errors.Wrap(err, "failed to flush temporary file")
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return false, errors.Wrapf(err, "failed to move asset into %s", dst)
	}
	return true, nil
}
