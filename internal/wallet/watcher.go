// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aVault Authors

package wallet

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/avault-algo/avault/internal/util"
)

// Watch reloads the registry when accounts.yaml changes on disk, debounced
// to avoid rapid reloads. onReload (optional) runs after each successful
// reload. Watch returns after installing the watcher; it stops when ctx is
// cancelled.
func (r *Registry) Watch(ctx context.Context, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: editors and our own atomic writes replace the
	// file by rename, which drops a watch installed on the file itself.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch registry directory: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		var debounce *time.Timer
		const debounceDelay = 500 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(r.path) {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					if err := r.reload(); err != nil {
						util.Logger.Warn("account registry reload failed", "error", err)
						return
					}
					util.Debug("account registry reloaded", "path", r.path)
					if onReload != nil {
						onReload()
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				util.Logger.Warn("account registry watcher error", "error", err)
			}
		}
	}()

	return nil
}
