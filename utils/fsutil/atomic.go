// Package fsutil writes files so that readers never observe a partial result.
package fsutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFile streams write into a temporary file next to path and renames it
// into place once write and the sync succeeded.
func WriteFile(path string, perm os.FileMode, write func(w io.Writer) error) error {
	return Replace(path, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
		if err != nil {
			return err
		}
		if err := write(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

// Replace calls produce with a temporary path in the directory of path. The
// temporary file keeps the extension of path, because some writers pick
// the output format from it. On success it is renamed over path, on failure
// it is removed.
func Replace(path string, produce func(tmp string) error) error {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(path)

	f, err := os.CreateTemp(dir, "."+base+".*"+ext)
	if err != nil {
		return errors.Wrapf(err, "can not create temporary file for %s", path)
	}
	tmp := f.Name()
	f.Close()

	if err := produce(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "can not move %s into place", path)
	}
	return nil
}
