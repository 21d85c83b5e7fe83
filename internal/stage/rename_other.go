//go:build !linux

package stage

func renameNoReplace(src, dst string) error {
	return renameChecked(src, dst)
}
