package stage

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/eargollo/autofilebot/internal/failure"
)

// HashFailure records a file that could not be hashed during a scan.
type HashFailure struct {
	Path string
	Err  error
}

// DuplicateReport is the outcome of scanning one directory.
type DuplicateReport struct {
	Files      int      // regular files hashed successfully
	Duplicates []string // paths in listing order; the first holder of each digest is never listed
	Failures   []HashFailure
}

// ScanDuplicates hashes every regular file directly inside dir and returns
// the files whose digest matches one seen earlier in the same listing.
// Subdirectories, symlinks and special files are ignored. Files that vanish
// before they can be hashed are skipped; other hash errors are recorded and
// the scan continues. Only a failure to list dir is returned as an error.
func (e *Engine) ScanDuplicates(dir string) (DuplicateReport, error) {
	var report DuplicateReport

	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return report, failure.IO("list", dir, err)
	}

	seen := make(map[string]string) // digest → first path
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		sum, err := e.HashFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			e.log.Debug("file vanished before hashing", "path", path)
			continue
		}
		if err != nil {
			e.log.Warn("hash failed, skipping file", "path", path, "error", err)
			report.Failures = append(report.Failures, HashFailure{Path: path, Err: err})
			continue
		}
		report.Files++

		if first, ok := seen[sum]; ok {
			e.log.Debug("duplicate content", "path", path, "first", first, "md5", sum)
			report.Duplicates = append(report.Duplicates, path)
			continue
		}
		seen[sum] = path
	}
	return report, nil
}
