//go:build !windows

package store

import "os"

// replaceFile atomically moves src over dst.
func replaceFile(src, dst string) error {
	return os.Rename(src, dst)
}
