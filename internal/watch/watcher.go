// Copyright 2025 Tom Barlow
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


// Package watch reports changes to a fixed set of files.
//
// Editors commonly save by writing a temporary file and renaming it over the
// original, which drops an inotify watch placed on the file itself. The
// watcher therefore watches each file's parent directory and filters events
// by name. Bursts of events for one file are debounced into a single change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tombee/runcontrol/internal/log"
)

// DefaultWindow is the debounce window for a burst of events on one file.
const DefaultWindow = 200 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithWindow sets the debounce window.
func WithWindow(d time.Duration) Option {
	return func(w *Watcher) {
		w.window = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// Watcher delivers the path of each changed file on Changes.
type Watcher struct {
	fsw     *fsnotify.Watcher
	files   map[string]bool
	window  time.Duration
	logger  *slog.Logger
	changes chan string
	done    chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// New watches paths. The files must exist.
func New(paths []string, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:     fsw,
		files:   make(map[string]bool, len(paths)),
		window:  DefaultWindow,
		logger:  log.Discard(),
		changes: make(chan string, 16),
		done:    make(chan struct{}),
		timers:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = log.WithComponent(w.logger, "watch")

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	return w, nil
}

// Changes returns the channel of changed paths. It is closed when the
// watcher stops.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Run processes filesystem events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", log.Error(err))
		}
	}
}

// Close stops Run and releases the underlying watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	path, err := filepath.Abs(event.Name)
	if err != nil || !w.files[path] {
		return
	}
	w.logger.Debug("file event", slog.String("path", path), slog.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.window, func() { w.flush(path) })
}

func (w *Watcher) flush(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	delete(w.timers, path)
	select {
	case w.changes <- path:
	default:
		w.logger.Warn("change channel full, dropping change", slog.String("path", path))
	}
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	close(w.changes)
}
