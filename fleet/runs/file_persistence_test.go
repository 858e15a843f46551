package runs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/fleet-rental-sim/fleet/simulation"
)

func TestFilePersistence(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilePersistence(root)
	require.NoError(t, err)

	manager := NewManagerWithPersistence(store, nil)
	run, err := manager.Create("default")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, run.ID), run.Dir)

	t.Run("create writes record", func(t *testing.T) {
		assert.True(t, store.Exists(run.ID))
		assert.FileExists(t, filepath.Join(root, run.ID, recordFile))
	})

	t.Run("update round trips", func(t *testing.T) {
		_, err := manager.Update(run.ID, func(r *Run) {
			r.Status = StatusCompleted
			r.Requests = 4
			r.Summary = &simulation.RunSummary{Batches: 2, Completed: 3, Faulted: 1}
			r.Faults = []simulation.FaultEntry{{VehicleID: "B1", Description: "Flat tyre"}}
		})
		require.NoError(t, err)

		loaded, err := store.Load(run.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, loaded.Status)
		assert.Equal(t, 4, loaded.Requests)
		assert.Equal(t, 2, loaded.Summary.Batches)
		require.Len(t, loaded.Faults, 1)
		assert.Equal(t, "Flat tyre", loaded.Faults[0].Description)
	})

	t.Run("list ignores stray entries", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0644))
		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

		ids, err := store.ListAll()
		require.NoError(t, err)
		assert.Equal(t, []string{run.ID}, ids)
	})

	t.Run("invalid ids are rejected", func(t *testing.T) {
		_, err := store.Load("../../etc")
		assert.ErrorIs(t, err, ErrInvalidRunID)
		assert.False(t, store.Exists("../x"))
	})

	t.Run("delete removes run directory", func(t *testing.T) {
		require.NoError(t, manager.Delete(run.ID))
		assert.NoDirExists(t, filepath.Join(root, run.ID))
		assert.ErrorIs(t, store.Delete(run.ID), ErrRunNotFound)
	})
}

func TestManager_LoadPersisted(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilePersistence(root)
	require.NoError(t, err)

	first := NewManagerWithPersistence(store, nil)
	done, err := first.Create("default")
	require.NoError(t, err)
	_, err = first.Update(done.ID, func(r *Run) { r.Status = StatusCompleted })
	require.NoError(t, err)

	active, err := first.Create("default")
	require.NoError(t, err)
	_, err = first.Update(active.ID, func(r *Run) { r.Status = StatusRunning })
	require.NoError(t, err)

	second := NewManagerWithPersistence(store, nil)
	require.NoError(t, second.LoadPersisted())
	assert.Equal(t, 2, second.Count())

	got, err := second.Get(done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	got, err = second.Get(active.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, interruptedMessage, got.Error)

	reloaded, err := store.Load(active.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, reloaded.Status)
}

func TestManager_GetFallsBackToPersistence(t *testing.T) {
	root := t.TempDir()
	store, err := NewFilePersistence(root)
	require.NoError(t, err)

	run, err := NewManagerWithPersistence(store, nil).Create("default")
	require.NoError(t, err)

	fresh := NewManagerWithPersistence(store, nil)
	got, err := fresh.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, 1, fresh.Count())
}
