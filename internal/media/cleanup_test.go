// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotoshake/canvasd/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "canvasd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func defaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		Interval:          time.Hour,
		InitialDelay:      time.Minute,
		RecentVideoWindow: time.Hour,
		DangerThreshold:   0.5,
	}
}

func TestSweep_DeletesUnreferencedFiles(t *testing.T) {
	db := openTestDB(t)
	storage := newTestStorage(t)
	ctx := context.Background()

	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)

	require.NoError(t, storage.Fs.MkdirAll(storage.UploadsDir, 0o755))
	require.NoError(t, writeUpload(storage, "orphan.png", []byte("data")))
	require.NoError(t, db.InsertFile(ctx, &store.File{
		Filename: "orphan.png", OriginalName: "orphan.png", MimeType: "image/png",
		Size: 4, Hash: "h1", UserID: owner.ID,
	}))

	c, err := db.CreateCanvas(ctx, "Canvas", "", owner.ID)
	require.NoError(t, err)
	require.NoError(t, writeUpload(storage, "bound.png", []byte("data")))
	require.NoError(t, db.InsertFile(ctx, &store.File{
		Filename: "bound.png", OriginalName: "bound.png", MimeType: "image/png",
		Size: 4, Hash: "h2", UserID: owner.ID, CanvasID: c.ID,
	}))

	cleaner := NewCleaner(db, storage, "", nil, defaultCleanupConfig())

	result, err := cleaner.Sweep(ctx, false, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, int64(4), result.BytesFreed)

	_, err = db.GetFileByFilename(ctx, "orphan.png")
	assert.Error(t, err)

	ok, err := afeExists(storage, storage.UploadPath("orphan.png"))
	require.NoError(t, err)
	assert.False(t, ok)

	bound, err := db.GetFileByFilename(ctx, "bound.png")
	require.NoError(t, err)
	assert.Equal(t, "bound.png", bound.Filename)
}

func TestSweep_DryRunDoesNotDelete(t *testing.T) {
	db := openTestDB(t)
	storage := newTestStorage(t)
	ctx := context.Background()

	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)
	require.NoError(t, writeUpload(storage, "orphan.png", []byte("data")))
	require.NoError(t, db.InsertFile(ctx, &store.File{
		Filename: "orphan.png", OriginalName: "orphan.png", MimeType: "image/png",
		Size: 4, Hash: "h1", UserID: owner.ID,
	}))

	cleaner := NewCleaner(db, storage, "", nil, defaultCleanupConfig())
	result, err := cleaner.Sweep(ctx, true, false, false)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 0, result.Deleted)

	_, err = db.GetFileByFilename(ctx, "orphan.png")
	assert.NoError(t, err)
}

func TestSweep_RefusesMajorityDeleteWithoutForce(t *testing.T) {
	db := openTestDB(t)
	storage := newTestStorage(t)
	ctx := context.Background()

	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		name := testFileName(i)
		require.NoError(t, writeUpload(storage, name, []byte("data")))
		require.NoError(t, db.InsertFile(ctx, &store.File{
			Filename: name, OriginalName: name, MimeType: "image/png",
			Size: 4, Hash: name, UserID: owner.ID,
		}))
	}

	cleaner := NewCleaner(db, storage, "", nil, defaultCleanupConfig())
	result, err := cleaner.Sweep(ctx, false, false, false)
	require.NoError(t, err)
	assert.True(t, result.Refused)
	assert.Zero(t, result.Deleted)
}

func TestSweep_ForceBypassesRefusal(t *testing.T) {
	db := openTestDB(t)
	storage := newTestStorage(t)
	ctx := context.Background()

	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		name := testFileName(i)
		require.NoError(t, writeUpload(storage, name, []byte("data")))
		require.NoError(t, db.InsertFile(ctx, &store.File{
			Filename: name, OriginalName: name, MimeType: "image/png",
			Size: 4, Hash: name, UserID: owner.ID,
		}))
	}

	cleaner := NewCleaner(db, storage, "", nil, defaultCleanupConfig())
	result, err := cleaner.Sweep(ctx, false, false, true)
	require.NoError(t, err)
	assert.False(t, result.Refused)
	assert.Equal(t, 3, result.Deleted)
}

func TestSweep_KeepsRecentVideosWithinGraceWindow(t *testing.T) {
	db := openTestDB(t)
	storage := newTestStorage(t)
	ctx := context.Background()

	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)
	require.NoError(t, writeUpload(storage, "clip.webm", []byte("data")))
	require.NoError(t, db.InsertFile(ctx, &store.File{
		Filename: "clip.webm", OriginalName: "clip.webm", MimeType: "video/webm",
		Size: 4, Hash: "h1", UserID: owner.ID,
	}))

	cleaner := NewCleaner(db, storage, "", nil, defaultCleanupConfig())
	result, err := cleaner.Sweep(ctx, false, false, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 0, result.Deleted, "a freshly written video should still be within the grace window")
}

func TestUpdateConfig_TakesEffectOnAccessor(t *testing.T) {
	db := openTestDB(t)
	storage := newTestStorage(t)

	cleaner := NewCleaner(db, storage, "", nil, defaultCleanupConfig())
	cleaner.UpdateConfig(CleanupConfig{
		Interval:          2 * time.Hour,
		InitialDelay:      5 * time.Minute,
		RecentVideoWindow: 10 * time.Minute,
		DangerThreshold:   0.9,
	})

	got := cleaner.config()
	assert.Equal(t, 2*time.Hour, got.Interval)
	assert.Equal(t, 0.9, got.DangerThreshold)
}

// writeUpload writes content under storage's uploads directory.
func writeUpload(s *Storage, name string, content []byte) error {
	return afero.WriteFile(s.Fs, s.UploadPath(name), content, 0o644)
}

func testFileName(i int) string {
	return []string{"a.png", "b.png", "c.png"}[i]
}
