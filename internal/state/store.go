package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Load reads the registry at path. A missing file is an empty registry.
func Load(path string) (*Registry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("read model state: %w", err)
	}
	reg := New()
	if len(bytes.TrimSpace(b)) == 0 {
		return reg, nil
	}
	if err := json.Unmarshal(b, reg); err != nil {
		return nil, fmt.Errorf("parse model state %s: %w", path, err)
	}
	if reg.Models == nil {
		reg.Models = make(map[string]Record)
	}
	return reg, nil
}

// Save writes the whole registry to path. The document is written to a
// temporary file in the same directory and renamed over path, so readers see
// either the old or the new snapshot.
func Save(path string, reg *Registry) error {
	if reg == nil {
		reg = New()
	}
	b, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode model state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write model state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync model state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model state: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod model state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace model state: %w", err)
	}
	return nil
}

// Store is the registry repository shared by all CLI invocations on a host.
type Store struct {
	Path string
	// LockWait bounds how long Update and View wait for the lock (0 = 10s).
	LockWait time.Duration
}

// NewStore returns a Store for the registry file at path.
func NewStore(path string) *Store { return &Store{Path: path} }

// ErrNoChange may be returned by an Update callback to skip saving.
var ErrNoChange = errors.New("state: no change")

// Update runs fn on the current registry under an exclusive lock and saves the
// result. If fn returns an error the file is left untouched and the error is
// returned, except ErrNoChange which skips the save and returns nil.
func (s *Store) Update(ctx context.Context, fn func(*Registry) error) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	reg, err := Load(s.Path)
	if err != nil {
		return err
	}
	if err := fn(reg); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	return Save(s.Path, reg)
}

// View runs fn on the current registry under the same lock, without saving.
func (s *Store) View(ctx context.Context, fn func(*Registry) error) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	reg, err := Load(s.Path)
	if err != nil {
		return err
	}
	return fn(reg)
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	wait := s.LockWait
	if wait <= 0 {
		wait = 10 * time.Second
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	return lockFile(ctx, s.Path+".lock")
}
