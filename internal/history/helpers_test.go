package history_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/eargollo/autofilebot/internal/config"
)

func testPipeline(t *testing.T, root string) config.Pipeline {
	t.Helper()
	cfg := config.Pipeline{
		IntakeDir:     filepath.Join(root, "files"),
		QuarantineDir: filepath.Join(root, "error"),
		BackupDir:     filepath.Join(root, "backup"),
		ArchiveDir:    filepath.Join(root, "hadoop"),
		Thresholds:    [3]int{1, 1, 1},
	}
	for _, d := range []string{cfg.IntakeDir, cfg.QuarantineDir, cfg.BackupDir, cfg.ArchiveDir} {
		if err := os.Mkdir(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}
