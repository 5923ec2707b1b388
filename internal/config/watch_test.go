// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, path string, port int) {
	t.Helper()
	body := `{server: {port: ` + itoa(port) + `}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canvasd.json")
	writeConfig(t, path, 3000)

	var lastPort atomic.Int32
	var reloads atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, NewLoader(), path, func(cfg *Config) {
		lastPort.Store(int32(cfg.Server.Port))
		reloads.Add(1)
	})
	require.NoError(t, err)
	defer w.Close()

	writeConfig(t, path, 4000)

	require.Eventually(t, func() bool {
		return reloads.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(4000), lastPort.Load())
}

func TestWatch_BadReloadKeepsLastGood(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canvasd.json")
	writeConfig(t, path, 3000)

	var reloads atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, NewLoader(), path, func(cfg *Config) {
		reloads.Add(1)
	})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("not valid json or hjson {{{"), 0o644))

	// Give the watcher time to notice and attempt (and fail) a reload.
	time.Sleep(500 * time.Millisecond)

	assert.Equal(t, int32(0), reloads.Load())
}

func TestWatch_DebouncesBurstOfWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canvasd.json")
	writeConfig(t, path, 3000)

	var reloads atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, NewLoader(), path, func(cfg *Config) {
		reloads.Add(1)
	})
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 5; i++ {
		writeConfig(t, path, 4000+i)
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return reloads.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// The burst should have settled into a single reload, not five.
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, int32(1), reloads.Load())
}

func TestWatch_CloseStopsWatching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canvasd.json")
	writeConfig(t, path, 3000)

	var reloads atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := Watch(ctx, NewLoader(), path, func(cfg *Config) {
		reloads.Add(1)
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	writeConfig(t, path, 5000)
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, int32(0), reloads.Load())
}
