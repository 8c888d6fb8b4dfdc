package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

type callbackEntry struct {
	id       uint64
	callback func(Event)
	isDir    bool
}

type watchHandle struct {
	watcher *Watcher
	path    string
	id      uint64
	once    sync.Once
}

func (handle *watchHandle) Close() error {
	if handle == nil || handle.watcher == nil {
		return nil
	}
	var err error
	handle.once.Do(func() {
		err = handle.watcher.removeCallback(handle.path, handle.id)
	})
	return err
}

// Watch registers a callback for filesystem events on a path.
func (watcher *Watcher) Watch(path string, callback func(Event)) (Handle, error) {
	if watcher == nil {
		return nil, errors.New("watcher is nil")
	}
	if path == "" {
		return nil, errors.New("path is required")
	}
	if callback == nil {
		return nil, errors.New("callback is required")
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	watcher.mutex.Lock()
	if watcher.closed {
		watcher.mutex.Unlock()
		return nil, errors.New("watcher is closed")
	}

	needsAdd := watcher.callbacks[path] == nil
	if needsAdd && watcher.activeWatches >= watcher.maxWatches {
		watcher.mutex.Unlock()
		return nil, ErrMaxWatchesExceeded
	}

	watcher.nextID++
	entry := callbackEntry{
		id:       watcher.nextID,
		callback: callback,
		isDir:    info.IsDir(),
	}
	watcher.callbacks[path] = append(watcher.callbacks[path], entry)
	if needsAdd {
		watcher.activeWatches++
	}
	active := watcher.activeWatches
	watcher.mutex.Unlock()

	if needsAdd {
		if err := watcher.watcher.Add(path); err != nil {
			watcher.removeCallbackEntryOnly(path, entry.id)
			return nil, err
		}
	}

	watcher.logDebug("watch added", path, active)
	return &watchHandle{watcher: watcher, path: path, id: entry.id}, nil
}

func (watcher *Watcher) removeCallback(path string, id uint64) error {
	watcher.mutex.Lock()
	entries := watcher.callbacks[path]
	remaining := entries[:0]
	for _, entry := range entries {
		if entry.id != id {
			remaining = append(remaining, entry)
		}
	}

	removeWatch := false
	if len(remaining) == 0 {
		delete(watcher.callbacks, path)
		if len(entries) > 0 {
			watcher.activeWatches--
			removeWatch = true
		}
	} else {
		watcher.callbacks[path] = remaining
	}
	closed := watcher.closed
	active := watcher.activeWatches
	watcher.mutex.Unlock()

	if removeWatch && !closed {
		if err := watcher.watcher.Remove(path); err != nil {
			return err
		}
	}
	watcher.logDebug("watch removed", path, active)
	return nil
}

func (watcher *Watcher) removeCallbackEntryOnly(path string, id uint64) {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	entries := watcher.callbacks[path]
	remaining := entries[:0]
	for _, entry := range entries {
		if entry.id != id {
			remaining = append(remaining, entry)
		}
	}
	if len(remaining) == 0 {
		delete(watcher.callbacks, path)
		if len(entries) > 0 {
			watcher.activeWatches--
		}
	} else {
		watcher.callbacks[path] = remaining
	}
}

// callbacksForPathLocked resolves callbacks for an event path: exact
// registrations plus directory registrations on the parent.
func (watcher *Watcher) callbacksForPathLocked(path string) []func(Event) {
	var callbacks []func(Event)
	for _, entry := range watcher.callbacks[path] {
		callbacks = append(callbacks, entry.callback)
	}
	parent := filepath.Dir(path)
	if parent != path {
		for _, entry := range watcher.callbacks[parent] {
			if entry.isDir {
				callbacks = append(callbacks, entry.callback)
			}
		}
	}
	return callbacks
}

func (watcher *Watcher) hasCallbacksLocked(path string) bool {
	if len(watcher.callbacks[path]) > 0 {
		return true
	}
	parent := filepath.Dir(path)
	if parent == path {
		return false
	}
	for _, entry := range watcher.callbacks[parent] {
		if entry.isDir {
			return true
		}
	}
	return false
}

// watchedPaths returns the currently registered paths.
func (watcher *Watcher) watchedPaths() []string {
	watcher.mutex.Lock()
	defer watcher.mutex.Unlock()
	paths := make([]string, 0, len(watcher.callbacks))
	for path := range watcher.callbacks {
		paths = append(paths, path)
	}
	return paths
}
