// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStorage(dir, "uploads", "thumbnails", "transcodes")
	require.NoError(t, err)
	return s
}

func TestNewStorage_CreatesSubdirs(t *testing.T) {
	s := newTestStorage(t)
	for _, dir := range []string{"uploads", "thumbnails", "transcodes"} {
		ok, err := afeExists(s, dir)
		require.NoError(t, err)
		assert.True(t, ok, "expected %s to exist", dir)
	}
}

func TestUploadPath(t *testing.T) {
	s := newTestStorage(t)
	assert.Equal(t, "uploads/img.png", s.UploadPath("img.png"))
}

func TestThumbnailPath(t *testing.T) {
	s := newTestStorage(t)
	assert.Equal(t, "thumbnails/256/img.webp", s.ThumbnailPath(256, "img"))
}

func TestTranscodePath(t *testing.T) {
	s := newTestStorage(t)
	assert.Equal(t, "transcodes/clip.webm", s.TranscodePath("clip", "webm"))
}

func TestGenerateFilename_FormatAndUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		name, err := GenerateFilename(1700000000000+int64(i), ".png")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(name, ".png"))
		assert.False(t, seen[name], "duplicate filename %s", name)
		seen[name] = true
	}
}

func TestHashReader(t *testing.T) {
	h1, n, err := HashReader(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)

	h2, _, err := HashReader(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, _, err := HashReader(strings.NewReader("different"))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestBasename(t *testing.T) {
	assert.Equal(t, "1700000000000-abc123", Basename("1700000000000-abc123.png"))
	assert.Equal(t, "noext", Basename("noext"))
}
