//go:build windows

package store

import "golang.org/x/sys/windows"

// replaceFile moves src over dst. os.Rename does not flush the rename to disk
// on Windows, so MoveFileEx is asked to write through.
func replaceFile(src, dst string) error {
	from, err := windows.UTF16PtrFromString(src)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dst)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}
