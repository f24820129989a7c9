package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	task, err := r.Create(ctx, "book a flight to Lisbon")
	require.NoError(t, err)
	require.Equal(t, TaskPending, task.Status)
	require.Equal(t, r.BundlePath(task.ID), task.BundleDir)

	got, err := r.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, task.ID, got.ID)
	require.Equal(t, "book a flight to Lisbon", got.Description)
	require.Equal(t, task.BundleDir, got.BundleDir)
}

func TestRegistry_GetMissing(t *testing.T) {
	r := openTestRegistry(t)
	_, err := r.Get(context.Background(), 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_UpdateStatus(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	task, err := r.Create(ctx, "t")
	require.NoError(t, err)

	require.NoError(t, r.UpdateStatus(ctx, task.ID, TaskRecording))
	got, err := r.Get(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, TaskRecording, got.Status)

	require.ErrorIs(t, r.UpdateStatus(ctx, 9999, TaskComplete), ErrNotFound)
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	first, err := r.Create(ctx, "first")
	require.NoError(t, err)
	second, err := r.Create(ctx, "second")
	require.NoError(t, err)

	tasks, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, second.ID, tasks[0].ID)
	require.Equal(t, first.ID, tasks[1].ID)
}

func TestRegistry_IDsAreStable(t *testing.T) {
	// Bundle directories are derived from ids; reopening the registry must
	// resolve the same paths.
	dir := t.TempDir()

	r, err := Open(dir)
	require.NoError(t, err)
	task, err := r.Create(context.Background(), "t")
	require.NoError(t, err)
	require.NoError(t, r.Close())

	r2, err := Open(dir)
	require.NoError(t, err)
	defer r2.Close()

	got, err := r2.Get(context.Background(), task.ID)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "bundles", "task_1"), got.BundleDir)
}
