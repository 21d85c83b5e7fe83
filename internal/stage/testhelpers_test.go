package stage

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// faultyFS wraps OS and fails Open or Move for selected base names.
type faultyFS struct {
	OS
	openErr map[string]error
	moveErr map[string]error
}

func (f faultyFS) Open(path string) (io.ReadCloser, error) {
	if err, ok := f.openErr[filepath.Base(path)]; ok {
		return nil, err
	}
	return f.OS.Open(path)
}

func (f faultyFS) Move(src, dst string) error {
	if err, ok := f.moveErr[filepath.Base(src)]; ok {
		return err
	}
	return f.OS.Move(src, dst)
}

// newTestEngine returns an Engine whose log output is captured in the
// returned buffer.
func newTestEngine(tb testing.TB, fsys FS) (*Engine, *bytes.Buffer) {
	tb.Helper()
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(fsys, log), &buf
}

// mustWrite creates dir/name with content.
func mustWrite(tb testing.TB, dir, name, content string) string {
	tb.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		tb.Fatalf("write %q: %v", p, err)
	}
	return p
}

// names returns the sorted entry names of dir.
func names(tb testing.TB, dir string) []string {
	tb.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		tb.Fatalf("read dir %q: %v", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}
