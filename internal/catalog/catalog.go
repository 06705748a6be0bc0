// Package catalog finds installable models: one subdirectory per model under
// the registry directory, each holding a Modelfile.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"tiles/internal/paths"
)

// ModelfileName is the file looked up inside each model directory.
const ModelfileName = "Modelfile"

// Entry is one installable model.
type Entry struct {
	Name string
	Path string // absolute path of the Modelfile
}

// notFoundError reports a model reference that resolves to nothing.
type notFoundError struct {
	ref string
	dir string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("model %q not found: no %s in %s and no such file", e.ref, ModelfileName, filepath.Join(e.dir, e.ref))
}

// IsNotFound reports whether err came from Resolve failing to find a model.
func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}

// List returns the models under dir, sorted by name. A missing dir is empty.
func List(dir string) ([]Entry, error) {
	abs, err := absDir(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var out []Entry
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(abs, e.Name(), ModelfileName)
		if fi, err := os.Stat(p); err != nil || fi.IsDir() {
			continue
		}
		out = append(out, Entry{Name: e.Name(), Path: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Resolve maps ref to a Modelfile path. ref is tried as a model name under
// dir first, then as a path to a Modelfile or to a directory holding one.
func Resolve(dir, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty model reference")
	}
	abs, err := absDir(dir)
	if err != nil {
		return "", err
	}
	if !strings.ContainsAny(ref, `/\`) {
		p := filepath.Join(abs, ref, ModelfileName)
		if isFile(p) {
			return p, nil
		}
	}
	p, err := paths.Expand(ref)
	if err != nil {
		return "", err
	}
	if fi, err := os.Stat(p); err == nil {
		if fi.IsDir() {
			p = filepath.Join(p, ModelfileName)
			if !isFile(p) {
				return "", notFoundError{ref: ref, dir: abs}
			}
		}
		return filepath.Abs(p)
	}
	return "", notFoundError{ref: ref, dir: abs}
}

func absDir(dir string) (string, error) {
	base, err := paths.Expand(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	return abs, nil
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
