// Copyright 2025.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sshconfig

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	watchDebounce = 200 * time.Millisecond

	// selfWriteGrace is how long after one of our own writes events on the
	// config file are ignored. Editors and our atomic rename both surface
	// as create/rename bursts, so the window is generous.
	selfWriteGrace = 1500 * time.Millisecond
)

// Watch notifies onChange after the config file changes on disk. The watch
// covers the parent directory because editors and atomic writers replace
// the file rather than writing it in place. Our own writes are suppressed.
func (r *connectionRepo) Watch(onChange func()) (func(), error) {
	if err := r.ensureFile(); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	var timerMu sync.Mutex
	var debounce *time.Timer
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(r.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if r.isSelfWrite() {
					continue
				}
				timerMu.Lock()
				if debounce == nil {
					debounce = time.AfterFunc(watchDebounce, onChange)
				} else {
					debounce.Reset(watchDebounce)
				}
				timerMu.Unlock()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warnw("config watch error", "path", r.path, "error", err)
			}
		}
	}()

	stop := func() {
		_ = watcher.Close()
		timerMu.Lock()
		if debounce != nil {
			debounce.Stop()
		}
		timerMu.Unlock()
	}
	return stop, nil
}

func (r *connectionRepo) markSelfWrite() {
	r.mu.Lock()
	r.suppressUntil = time.Now().Add(selfWriteGrace)
	r.mu.Unlock()
}

func (r *connectionRepo) isSelfWrite() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Now().Before(r.suppressUntil)
}
