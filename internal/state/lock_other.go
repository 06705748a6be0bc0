//go:build !unix

package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// lockFile falls back to an O_EXCL lock file where flock is unavailable.
func lockFile(ctx context.Context, path string) (func(), error) {
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(path) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("lock model state: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock model state: %w", ctx.Err())
		case <-time.After(20 * time.Millisecond):
		}
	}
}
