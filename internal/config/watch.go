package config

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher reloads the config file on change and hands the retrieval section to a callback.
// Other sections need a restart. Invalid edits are logged and ignored.
type Watcher struct {
	dir      string
	env      string
	path     string
	onChange func(RetrievalConfig)
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	current RetrievalConfig
}

// NewWatcher creates a watcher for <dir>/<env>.yaml starting from the loaded config.
func NewWatcher(dir, env string, loaded Config, onChange func(RetrievalConfig), logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		env:      env,
		path:     Path(dir, env),
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   logger,
		current:  loaded.Retrieval,
	}
}

// Run watches the config directory until ctx is cancelled. Editors replace files by rename,
// so the directory is watched rather than the file.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("Watching config for retrieval changes", zap.String("path", w.path))

	target := filepath.Clean(w.path)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// reload applies the file if its retrieval section changed.
func (w *Watcher) reload() {
	cfg, err := Load(w.dir, w.env)
	if err != nil {
		w.logger.Warn("Config reload rejected", zap.Error(err))
		return
	}

	w.mu.Lock()
	changed := !reflect.DeepEqual(cfg.Retrieval, w.current)
	if changed {
		w.current = cfg.Retrieval
	}
	w.mu.Unlock()

	if !changed {
		return
	}
	w.logger.Info("Retrieval settings reloaded")
	w.onChange(cfg.Retrieval)
}
