// Package util - snapshot and asset file helpers.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ignoredExtensions are files that live next to snapshots but are not images.
var ignoredExtensions = map[string]bool{
	".md":   true,
	".onnx": true,
}

// ImageFile represents a snapshot file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Label is the file name, used to identify the snapshot in logs.
	Label string
	// Data is the raw bytes of the image file.
	Data []byte
}

// LoadSnapshotFiles reads every file of a directory except documentation and
// model files, ordered by name. Subdirectories are skipped.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The files with their raw bytes.
//   - error: Error if the directory or a file cannot be read.
func LoadSnapshotFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read snapshot directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ignoredExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", path)
		}
		files = append(files, ImageFile{
			Path:  path,
			Label: entry.Name(),
			Data:  data,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Label < files[j].Label
	})

	return files, nil
}
