package scripting

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	coresys "github.com/l1jgo/worldsingleton/internal/core/system"
	"go.uber.org/zap"
)

// Watcher collects changed .lua files under a scripts directory. Changes
// accumulate until Take is called, so a burst of writes to one file
// reloads it once.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	log     *zap.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewWatcher(dir string, log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		dir:     dir,
		watcher: fsw,
		log:     log,
		pending: make(map[string]struct{}),
	}, nil
}

// Start watches dir and its subdirectories until ctx is done or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	err := filepath.Walk(w.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if base := filepath.Base(path); strings.HasPrefix(base, ".") && path != w.dir {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("watch script directory failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	go w.run(ctx)
	w.log.Info("script watcher started", zap.String("dir", w.dir))
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error { return w.watcher.Close() }

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("script watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	if filepath.Ext(ev.Name) != ".lua" {
		if ev.Has(fsnotify.Create) {
			if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
				_ = w.watcher.Add(ev.Name)
			}
		}
		return
	}
	w.mu.Lock()
	w.pending[ev.Name] = struct{}{}
	w.mu.Unlock()
	w.log.Debug("script change detected", zap.String("file", ev.Name), zap.Stringer("op", ev.Op))
}

// Take returns the files changed since the last call, sorted.
func (w *Watcher) Take() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 {
		return nil
	}
	out := make([]string, 0, len(w.pending))
	for p := range w.pending {
		out = append(out, p)
	}
	w.pending = make(map[string]struct{})
	sort.Strings(out)
	return out
}

// ReloadSystem re-runs changed scripts on the game thread. Phase
// PostUpdate.
type ReloadSystem struct {
	engine  *Engine
	watcher *Watcher
	log     *zap.Logger
}

func NewReloadSystem(e *Engine, w *Watcher, log *zap.Logger) *ReloadSystem {
	return &ReloadSystem{engine: e, watcher: w, log: log}
}

func (s *ReloadSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *ReloadSystem) Update(_ time.Duration) {
	for _, path := range s.watcher.Take() {
		if err := s.engine.ReloadFile(path); err != nil {
			s.log.Error("script reload failed", zap.String("file", path), zap.Error(err))
		}
	}
}
