package config

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Watcher monitors a config file and the bot definition files it refers to,
// and calls a callback when any of them is modified. It uses polling (not
// fsnotify) to keep dependencies minimal.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config, d ConfigDiff)

	mu       sync.Mutex
	current  *Config
	done     chan struct{}
	stopOnce sync.Once

	// last known file state for change detection
	lastMtimes  map[string]time.Time
	lastHash    [sha256.Size]byte
	lastDefHash [sha256.Size]byte
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher creates a config file watcher. It loads the initial config
// immediately and starts polling in a background goroutine.
func NewWatcher(path string, onChange func(old, new *Config, d ConfigDiff), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	snap, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = snap.cfg
	w.lastHash = snap.hash
	w.lastDefHash = snap.defHash
	w.lastMtimes = snap.mtimes

	go w.poll()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the file watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

// poll runs in a background goroutine, checking the files periodically.
func (w *Watcher) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the config when any watched file has a new mtime and, if
// the content changed and the result is valid, calls onChange.
func (w *Watcher) check() {
	w.mu.Lock()
	mtimes := w.lastMtimes
	w.mu.Unlock()

	// Quick mtime check first to avoid hashing unchanged files.
	changed := false
	for path, mtime := range mtimes {
		info, err := os.Stat(path)
		if err != nil {
			slog.Warn("config watcher: cannot stat file", "path", path, "err", err)
			return
		}
		if !info.ModTime().Equal(mtime) {
			changed = true
			break
		}
	}
	if !changed {
		return
	}

	snap, err := w.load()
	if err != nil {
		slog.Warn("config watcher: failed to load config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if snap.hash == w.lastHash && snap.defHash == w.lastDefHash {
		// Files were touched but content is identical.
		w.lastMtimes = snap.mtimes
		w.mu.Unlock()
		return
	}

	old := w.current
	defsChanged := snap.defHash != w.lastDefHash
	w.current = snap.cfg
	w.lastHash = snap.hash
	w.lastDefHash = snap.defHash
	w.lastMtimes = snap.mtimes
	w.mu.Unlock()

	d := Diff(old, snap.cfg)
	if defsChanged {
		d.DefinitionsChanged = true
		d.ManagersChanged = true
	}
	slog.Info("config watcher: configuration reloaded",
		"path", w.path,
		"managers_changed", d.ManagersChanged,
		"restart_required", d.RestartRequired,
	)

	// Invoke the callback outside the lock so it can safely call Current().
	if w.onChange != nil {
		w.onChange(old, snap.cfg, d)
	}
}

type snapshot struct {
	cfg     *Config
	hash    [sha256.Size]byte
	defHash [sha256.Size]byte
	mtimes  map[string]time.Time
}

// load reads, parses and validates the config file, then hashes it and
// every definition file it refers to. If the config is invalid, it returns
// an error (the caller should keep the old one).
func (w *Watcher) load() (snapshot, error) {
	mtimes := make(map[string]time.Time)

	data, mtime, err := readWithMtime(w.path)
	if err != nil {
		return snapshot{}, err
	}
	mtimes[w.path] = mtime

	cfg, err := parse(data)
	if err != nil {
		return snapshot{}, err
	}
	cfg.resolvePaths(filepath.Dir(w.path))
	if err := Validate(cfg); err != nil {
		return snapshot{}, err
	}

	defs := sha256.New()
	for _, path := range cfg.DefinitionFiles() {
		content, mtime, err := readWithMtime(path)
		if err != nil {
			return snapshot{}, err
		}
		mtimes[path] = mtime
		fmt.Fprintf(defs, "%s\x00%d\x00", path, len(content))
		defs.Write(content)
	}

	snap := snapshot{cfg: cfg, hash: sha256.Sum256(data), mtimes: mtimes}
	copy(snap.defHash[:], defs.Sum(nil))
	return snap, nil
}

func readWithMtime(path string) ([]byte, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, info.ModTime(), nil
}
