package config

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is one successful reload, diffed against the previous config and
// scoped to the fields the gateway can re-apply without restarting a
// transport: the tool include/exclude filter and the security policy
// knobs. Everything else (binding, breaker tuning, output caps) takes
// effect on the next restart, so handlers never see it flagged.
type Change struct {
	Config            *Config
	ToolFilterChanged bool
	SecurityChanged   bool
}

// ChangeHandler is called with the diff of each successful reload.
type ChangeHandler func(ch Change)

const defaultReloadDebounce = 300 * time.Millisecond

// Watcher watches the gateway's config file and delivers debounced,
// diffed reloads to its handlers.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu       sync.Mutex
	handlers []ChangeHandler
	last     *Config

	stopChan chan struct{}
}

// NewWatcher creates a config watcher seeded with the currently loaded
// config, which the first reload's diff is computed against. A debounce
// of zero or less uses the default.
func NewWatcher(configPath string, current *Config, debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	return &Watcher{
		path:     configPath,
		watcher:  w,
		debounce: debounce,
		last:     current,
	}, nil
}

// OnChange registers a handler to be called with each reload's diff.
func (cw *Watcher) OnChange(handler ChangeHandler) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.handlers = append(cw.handlers, handler)
}

// Start begins watching the config file for changes.
func (cw *Watcher) Start() error {
	if err := cw.watcher.Add(cw.path); err != nil {
		return err
	}

	cw.stopChan = make(chan struct{})
	go cw.watchLoop()

	slog.Info("config.watch_started", "path", cw.path, "debounce", cw.debounce)
	return nil
}

// Stop halts the file watcher.
func (cw *Watcher) Stop() {
	if cw.stopChan != nil {
		close(cw.stopChan)
	}
	cw.watcher.Close()
	slog.Info("config.watch_stopped", "path", cw.path)
}

func (cw *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-cw.stopChan:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}

			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			// Debounce: reset timer on each change
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(cw.debounce, func() {
				cw.reload()
			})

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config.watch_error", "error", err)
		}
	}
}

func (cw *Watcher) reload() {
	cfg, err := Load(cw.path)
	if err != nil {
		slog.Error("config.reload_failed", "path", cw.path, "error", err)
		return
	}

	cw.mu.Lock()
	prev := cw.last
	cw.last = cfg
	handlers := make([]ChangeHandler, len(cw.handlers))
	copy(handlers, cw.handlers)
	cw.mu.Unlock()

	ch := diffConfigs(prev, cfg)
	slog.Info("config.reloaded", "path", cw.path,
		"tool_filter_changed", ch.ToolFilterChanged,
		"security_changed", ch.SecurityChanged)

	for _, h := range handlers {
		h(ch)
	}
}

// diffConfigs computes the runtime-applicable diff between two configs. A
// nil previous config (watcher constructed without a baseline) flags
// everything, so handlers converge on the file's state.
func diffConfigs(prev, next *Config) Change {
	ch := Change{Config: next}
	if prev == nil {
		ch.ToolFilterChanged = true
		ch.SecurityChanged = true
		return ch
	}
	ch.ToolFilterChanged = !sameList(prev.Tools.Include, next.Tools.Include) ||
		!sameList(prev.Tools.Exclude, next.Tools.Exclude)
	ch.SecurityChanged = prev.Security != next.Security
	return ch
}

func sameList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
