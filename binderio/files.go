package binderio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// File is a generated output file. Name is relative to the output
// directory.
type File struct {
	Name    string
	Content []byte
}

// WriteFiles writes all files to dir, creating it if needed.
//
// Names must be unique and must not leave dir; this is checked before
// anything is written. If writing a file fails, the files already
// written by this call are removed again.
func WriteFiles(dir string, files []File) (err error) {
	seen := map[string]bool{}
	for _, f := range files {
		name := filepath.Clean(f.Name)
		if name == "." || filepath.IsAbs(name) || !filepath.IsLocal(name) {
			return fmt.Errorf("invalid output file name %v", strconv.Quote(f.Name))
		}
		if seen[name] {
			return fmt.Errorf("duplicate output file %v", strconv.Quote(f.Name))
		}
		seen[name] = true
	}

	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}

	var written []string
	defer func() {
		if err != nil {
			var rmErrs []error
			for _, path := range written {
				if rmErr := os.Remove(path); rmErr != nil {
					rmErrs = append(rmErrs, rmErr)
				}
			}
			err = errors.Join(append([]error{err}, rmErrs...)...)
		}
	}()
	for _, f := range files {
		path := filepath.Join(dir, f.Name)
		if err := os.MkdirAll(filepath.Dir(path), 0777); err != nil {
			return err
		}
		if err := os.WriteFile(path, f.Content, 0666); err != nil {
			return err
		}
		written = append(written, path)
	}
	return nil
}
