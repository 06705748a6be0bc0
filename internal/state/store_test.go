package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	return func() time.Time { return t }
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	reg, err := Load(filepath.Join(t.TempDir(), "model_state.json"))
	require.NoError(t, err)
	assert.True(t, reg.IsEmpty())
}

func TestLoad_EmptyFileIsEmpty(t *testing.T) {
	p := filepath.Join(t.TempDir(), "model_state.json")
	require.NoError(t, os.WriteFile(p, []byte("\n"), 0o644))
	reg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestLoad_CorruptFileFails(t *testing.T) {
	p := filepath.Join(t.TempDir(), "model_state.json")
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o644))
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse model state")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "model_state.json")
	reg := New()
	reg.now = fixedClock()
	reg.Add("mem", "driaforall/mem-agent", 4242)
	require.NoError(t, Save(p, reg))

	got, err := Load(p)
	require.NoError(t, err)
	rec, ok := got.Get("mem")
	require.True(t, ok)
	assert.Equal(t, Record{Name: "mem", ModelID: "driaforall/mem-agent", PID: 4242, StartedAt: "2026-03-14 09:26:53"}, rec)

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files should be left behind")
}

func TestSave_WireFormat(t *testing.T) {
	p := filepath.Join(t.TempDir(), "model_state.json")
	reg := New()
	reg.now = fixedClock()
	reg.Add("a", "org/a", 7)
	require.NoError(t, Save(p, reg))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"models":{"a":{"name":"a","model_id":"org/a","pid":7,"started_at":"2026-03-14 09:26:53"}}}`, string(b))
}

func TestRegistry_AddRemoveList(t *testing.T) {
	reg := New()
	reg.Add("b", "org/b", 2)
	reg.Add("a", "org/a", 1)
	reg.Add("a", "org/a2", 3)
	assert.Equal(t, 2, reg.Len())
	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, 3, list[0].PID, "Add replaces an existing name")

	rec, ok := reg.Remove("a")
	assert.True(t, ok)
	assert.Equal(t, "org/a2", rec.ModelID)
	_, ok = reg.Remove("a")
	assert.False(t, ok)
	reg.Remove("b")
	assert.True(t, reg.IsEmpty())
}

func TestStore_UpdatePersists(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "model_state.json"))
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(r *Registry) error {
		r.Add("mem", "org/mem", 10)
		return nil
	}))
	var n int
	require.NoError(t, s.View(ctx, func(r *Registry) error {
		n = r.Len()
		return nil
	}))
	assert.Equal(t, 1, n)
}

func TestStore_UpdateErrorLeavesFileUntouched(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "model_state.json"))
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, func(r *Registry) error {
		r.Add("mem", "org/mem", 10)
		return nil
	}))
	before, err := os.ReadFile(s.Path)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(ctx, func(r *Registry) error {
		r.Remove("mem")
		r.Add("other", "org/other", 11)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.Update(ctx, func(r *Registry) error {
		r.Add("x", "org/x", 12)
		return ErrNoChange
	}))

	after, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "model_state.json"))
	ctx := context.Background()
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- s.Update(ctx, func(r *Registry) error {
				r.Add(string(rune('a'+i)), "org/m", 100+i)
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	reg, err := Load(s.Path)
	require.NoError(t, err)
	assert.Equal(t, n, reg.Len())
}

func TestStore_LockTimeout(t *testing.T) {
	s := &Store{Path: filepath.Join(t.TempDir(), "model_state.json"), LockWait: 50 * time.Millisecond}
	ctx := context.Background()
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.View(ctx, func(*Registry) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	err := s.View(ctx, func(*Registry) error { return nil })
	close(release)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NoError(t, <-done)
}
