package filesystem

import (
	"errors"
	"io/fs"
	"path/filepath"
)

// WalkDir walks the tree rooted at root depth first in lexical order,
// calling fn for each file and directory like filepath.WalkDir. Stats and
// directory reads go through the retry helpers, so a stale NFS handle is
// retried instead of cutting a directory out of the walk.
//
// Unlike filepath.WalkDir the root is resolved with a stat, so a root
// that is a symlink to a directory is walked. Symlinks below the root are
// not followed.
func WalkDir(root string, config RetryConfig, fn fs.WalkDirFunc) error {
	info, err := StatWithRetry(root, config)
	if err != nil {
		err = fn(root, nil, err)
	} else {
		err = walkDir(root, fs.FileInfoToDirEntry(info), config, fn)
	}
	if errors.Is(err, fs.SkipDir) || errors.Is(err, fs.SkipAll) {
		return nil
	}
	return err
}

func walkDir(path string, d fs.DirEntry, config RetryConfig, fn fs.WalkDirFunc) error {
	if err := fn(path, d, nil); err != nil || !d.IsDir() {
		if errors.Is(err, fs.SkipDir) && d.IsDir() {
			err = nil
		}
		return err
	}

	entries, err := ReadDirWithRetry(path, config)
	if err != nil {
		// Second call for the directory, reporting the read error.
		if err := fn(path, d, err); err != nil {
			if errors.Is(err, fs.SkipDir) {
				err = nil
			}
			return err
		}
	}

	for _, entry := range entries {
		if err := walkDir(filepath.Join(path, entry.Name()), entry, config, fn); err != nil {
			if errors.Is(err, fs.SkipDir) {
				break
			}
			return err
		}
	}
	return nil
}
