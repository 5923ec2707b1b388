// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultReloadDebounce = 250 * time.Millisecond

// Watcher watches a single config file and reloads it on change, debounced
// so a burst of writes from an editor's save produces one reload instead of
// several partial ones.
type Watcher struct {
	mu      sync.Mutex
	loader  *Loader
	path    string
	onLoad  func(*Config)
	watcher *fsnotify.Watcher
	timer   *time.Timer
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Watch starts watching path for changes, calling onLoad with the
// successfully reparsed config each time the file settles after an edit. A
// reload that fails to parse is dropped without being reported — Watch never
// calls onLoad with a bad config, it just skips the reload and keeps watching.
func Watch(ctx context.Context, loader *Loader, path string, onLoad func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		loader:  loader,
		path:    path,
		onLoad:  onLoad,
		watcher: fsw,
		closeCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.run(ctx)

	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.closeCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.debounceReload()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) debounceReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(defaultReloadDebounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := w.loader.LoadWithDefaults(context.Background(), w.path)
	if err != nil {
		return
	}
	w.onLoad(cfg)
}

// Close stops watching and releases the underlying inotify/kqueue handle.
func (w *Watcher) Close() error {
	close(w.closeCh)
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}
