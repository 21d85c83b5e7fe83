package stage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"
)

// ErrDestinationExists is returned when a move would replace an entry that
// already exists in the destination directory.
var ErrDestinationExists = fmt.Errorf("destination already exists: %w", fs.ErrExist)

// FS is the filesystem surface the pipeline needs. OS is the production
// implementation; tests wrap it to inject failures.
type FS interface {
	ReadDir(dir string) ([]fs.DirEntry, error)
	Open(path string) (io.ReadCloser, error)
	// Move renames src to dst and must fail with ErrDestinationExists rather
	// than replace an existing dst.
	Move(src, dst string) error
}

// OS implements FS on the local filesystem.
type OS struct{}

// ReadDir lists dir sorted by filename.
func (OS) ReadDir(dir string) ([]fs.DirEntry, error) { return os.ReadDir(dir) }

func (OS) Open(path string) (io.ReadCloser, error) { return os.Open(path) }

// Move tries a no-replace rename first and falls back to copy+delete when
// src and dst are on different devices.
func (OS) Move(src, dst string) error {
	err := renameNoReplace(src, dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.EXDEV) {
		return copyThenDelete(src, dst)
	}
	return err
}

// renameChecked is the portable no-replace rename: an Lstat probe followed
// by os.Rename. A producer writing dst between the two calls can still be
// overwritten.
func renameChecked(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return ErrDestinationExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}

// copyThenDelete copies the regular file src to a newly created dst, then
// removes src. dst is cleaned up on error.
func copyThenDelete(src, dst string) (err error) {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("cross-device move of %q: not a regular file", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if errors.Is(err, fs.ErrExist) {
		return ErrDestinationExists
	}
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		if err != nil {
			os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
