package stage

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/eargollo/autofilebot/internal/failure"
)

// HashFile returns the hex MD5 of the full contents of path. The digest is
// for spotting accidental duplicates, not for integrity checks.
func (e *Engine) HashFile(path string) (string, error) {
	f, err := e.fs.Open(path)
	if err != nil {
		return "", failure.IO("open", path, err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", failure.IO("read", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
