package batch

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

// IOError is returned when a file or directory cannot be read or written
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return "failed to " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Walk returns the PDF files below root in lexical order. The extension is
// compared case-insensitively and filter, when set, must match the file
// name. Directories listed in skip are not entered.
func Walk(root string, filter *regexp.Regexp, skip ...string) ([]string, error) {
	skipped := make(map[string]bool, len(skip))
	for _, dir := range skip {
		if abs, err := filepath.Abs(dir); err == nil {
			skipped[abs] = true
		}
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && len(skipped) > 0 {
				if abs, err := filepath.Abs(path); err == nil && skipped[abs] {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}
		if filter != nil && !filter.MatchString(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, &IOError{Op: "walk", Path: root, Err: err}
	}

	slices.Sort(files)
	return files, nil
}

// OutputPath places a redacted copy of path under outDir, inside a folder
// named after the directory holding path
func OutputPath(outDir, path string) string {
	parent := filepath.Base(filepath.Dir(path))
	return filepath.Join(outDir, parent, filepath.Base(path))
}
