// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files
// ending with the specified extension. The extension may be given with or
// without a leading dot. Results are sorted with SortNumeric so numbered
// captures ("2.png", "10.png") come back in measurement order.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	SortNumeric(files)
	return files, nil
}

// SortNumeric sorts paths so that base names consisting of an integer compare
// numerically ("2.png" before "10.png") while everything else falls back to
// lexical order. Numbered names sort before non-numbered ones.
func SortNumeric(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		ni, iOK := numericBase(paths[i])
		nj, jOK := numericBase(paths[j])
		switch {
		case iOK && jOK:
			if ni != nj {
				return ni < nj
			}
			return paths[i] < paths[j]
		case iOK:
			return true
		case jOK:
			return false
		default:
			return paths[i] < paths[j]
		}
	})
}

func numericBase(path string) (int, bool) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	n, err := strconv.Atoi(stem)
	if err != nil {
		return 0, false
	}
	return n, true
}
