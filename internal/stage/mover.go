package stage

import (
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/eargollo/autofilebot/internal/failure"
)

// MoveFailure records one entry that could not be moved.
type MoveFailure struct {
	Name string
	Err  error
}

// MoveBatch is the outcome of MoveAll.
type MoveBatch struct {
	Moved    []string
	Failures []MoveFailure
	Bytes    int64 // total size of moved regular files
}

// MoveFile moves the file at path into dstDir under the same name. It never
// replaces an existing entry; that case fails with ErrDestinationExists.
func (e *Engine) MoveFile(path, dstDir string) error {
	dst := filepath.Join(dstDir, filepath.Base(path))
	if err := e.fs.Move(path, dst); err != nil {
		return failure.IO("move", path, err)
	}
	return nil
}

// MoveAll moves every direct child of src into dst, best-effort: each
// failure is logged and collected and the remaining entries are still
// moved. The returned error is non-nil only when src cannot be listed.
func (e *Engine) MoveAll(src, dst string) (MoveBatch, error) {
	var batch MoveBatch

	entries, err := e.fs.ReadDir(src)
	if err != nil {
		return batch, failure.IO("list", src, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		var size int64
		if entry.Type().IsRegular() {
			if info, err := entry.Info(); err == nil {
				size = info.Size()
			}
		}

		if err := e.MoveFile(filepath.Join(src, name), dst); err != nil {
			e.log.Error("move failed", "file", name, "from", src, "to", dst, "error", err)
			batch.Failures = append(batch.Failures, MoveFailure{Name: name, Err: err})
			continue
		}
		e.log.Info("moved", "file", name, "from", src, "to", dst)
		batch.Moved = append(batch.Moved, name)
		batch.Bytes += size
	}

	if len(batch.Moved) > 0 || len(batch.Failures) > 0 {
		e.log.Info("move batch finished",
			"from", src, "to", dst,
			"moved", len(batch.Moved),
			"failed", len(batch.Failures),
			"size", humanize.Bytes(uint64(batch.Bytes)))
	}
	return batch, nil
}
