package core

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dave/dst/decorator"
	log "github.com/sirupsen/logrus"
)

// Source renders the current state of f.
func (f *File) Source() ([]byte, error) {
	var b bytes.Buffer
	r := decorator.NewRestorer()
	if err := r.Fprint(&b, f.Syntax); err != nil {
		return nil, fmt.Errorf("could not print %s: %w", f.Name, err)
	}
	return b.Bytes(), nil
}

// Write stores files according to out: over the originals, below out.Dir, or
// to w. It returns the paths written, relative to dir.
func Write(w io.Writer, files []*File, dir string, out OutputConfig) ([]string, error) {
	written := []string{}
	for _, f := range files {
		rel, err := relativePath(dir, f.Name)
		if err != nil {
			return written, err
		}
		if shouldSkipOutput(out.Skip, rel) {
			log.Debugf("skipping output of %s", rel)
			continue
		}

		src, err := f.Source()
		if err != nil {
			return written, err
		}

		switch {
		case out.InPlace:
			err = os.WriteFile(f.Name, src, 0644)
		case out.Dir != "":
			target := filepath.Join(out.Dir, rel)
			if err = os.MkdirAll(filepath.Dir(target), 0755); err == nil {
				err = os.WriteFile(target, src, 0644)
			}
		default:
			_, err = fmt.Fprintf(w, "// %s\n%s\n", rel, src)
		}
		if err != nil {
			return written, fmt.Errorf("could not write %s: %w", rel, err)
		}
		written = append(written, rel)
	}
	return written, nil
}

func relativePath(dir string, name string) (string, error) {
	if dir == "" || !filepath.IsAbs(name) {
		return filepath.ToSlash(name), nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(abs, name)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside of %s", name, dir)
	}
	return filepath.ToSlash(rel), nil
}

func shouldSkipOutput(skip_patterns []string, file_path string) bool {
	for _, pattern := range skip_patterns {
		if strings.HasPrefix(pattern, "r:") {
			r, err := regexp.Compile(pattern[2:])
			if err == nil && r.MatchString(file_path) {
				return true
			}
		} else {
			// an exact file, i.e "test/test.go", or every file below "test/"
			if pattern == file_path {
				return true
			} else if strings.HasSuffix(pattern, "/") && strings.HasPrefix(file_path, pattern) {
				return true
			}
		}
	}
	return false
}
