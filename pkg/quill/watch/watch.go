// Package watch re-checks scripts when they change on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sambeau/quill/pkg/quill/quill"
)

// DefaultDebounce is how long the watcher waits for rapid changes to settle.
const DefaultDebounce = 100 * time.Millisecond

// ChangeFunc receives the scripts changed during one debounce window,
// sorted.
type ChangeFunc func(ctx context.Context, paths []string)

// Watcher monitors script directories and a config file.
type Watcher struct {
	watcher    *fsnotify.Watcher
	roots      []string
	configPath string
	onChange   ChangeFunc
	logger     quill.Logger

	Debounce time.Duration

	mu        sync.Mutex
	changeSeq uint64
	started   bool
	done      chan struct{}
}

// New creates a watcher for the scripts under roots. A change to
// configPath is reported but does not trigger onChange.
func New(roots []string, configPath string, onChange ChangeFunc, logger quill.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = quill.NullLogger()
	}

	return &Watcher{
		watcher:    fsWatcher,
		roots:      roots,
		configPath: configPath,
		onChange:   onChange,
		logger:     logger,
		Debounce:   DefaultDebounce,
		done:       make(chan struct{}),
	}, nil
}

// Start adds the watch list and begins processing events until ctx is done
// or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if w.configPath != "" {
		configDir := filepath.Dir(w.configPath)
		if err := w.watcher.Add(configDir); err != nil {
			w.logError("failed to watch config dir %s: %v", configDir, err)
		} else {
			w.logInfo("watching config: %s", w.configPath)
		}
	}

	for _, root := range w.roots {
		if err := w.watchDirRecursive(root); err != nil {
			w.logError("failed to watch %s: %v", root, err)
		} else {
			w.logInfo("watching scripts: %s", root)
		}
	}

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	go w.eventLoop(ctx)
	return nil
}

// watchDirRecursive adds a directory and its subdirectories to the watch list
func (w *Watcher) watchDirRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return w.watcher.Add(filepath.Dir(root))
	}
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time
	pending := make(map[string]bool)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}

			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			clear(pending)
			sort.Strings(paths)

			w.mu.Lock()
			w.changeSeq++
			w.mu.Unlock()

			w.handleChanges(ctx, paths)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logError("watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	if w.isConfig(path) {
		return true
	}
	return strings.EqualFold(filepath.Ext(path), quill.Extension)
}

func (w *Watcher) isConfig(path string) bool {
	return w.configPath != "" && filepath.Base(path) == filepath.Base(w.configPath)
}

func (w *Watcher) handleChanges(ctx context.Context, paths []string) {
	var scripts []string
	for _, path := range paths {
		if w.isConfig(path) {
			w.logInfo("config changed: %s (restart to apply)", path)
			continue
		}
		w.logInfo("script changed: %s", path)
		scripts = append(scripts, path)
	}

	if len(scripts) > 0 && w.onChange != nil {
		w.onChange(ctx, scripts)
	}
}

// ChangeSeq counts the debounced change batches seen so far.
func (w *Watcher) ChangeSeq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.changeSeq
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) logInfo(format string, args ...any) {
	w.logger.LogLine("[WATCH] " + fmt.Sprintf(format, args...))
}

func (w *Watcher) logError(format string, args ...any) {
	w.logger.LogLine("[WATCH ERROR] " + fmt.Sprintf(format, args...))
}
