package config

import (
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Watcher polls a config file and reloads it when its modification time
// changes. Invalid files are reported and the previous baseline is kept, so
// a fix to the file triggers another reload.
type Watcher struct {
	path     string
	interval time.Duration
	clock    clock.Clock

	mu       sync.Mutex
	baseline time.Time
	onChange func(Config)
	onError  func(error)
	stopCh   chan struct{}
}

// NewWatcher creates a watcher for path. The current modification time is the
// baseline; a missing file has a zero baseline.
func NewWatcher(path string, interval time.Duration, clk clock.Clock) *Watcher {
	if clk == nil {
		clk = clock.New()
	}
	w := &Watcher{path: path, interval: interval, clock: clk}
	if info, err := os.Stat(path); err == nil {
		w.baseline = info.ModTime()
	}
	return w
}

// OnChange sets the callback invoked with each successfully reloaded config.
// It runs on the watcher goroutine.
func (w *Watcher) OnChange(fn func(Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// OnError sets the callback invoked when a changed file fails to load.
func (w *Watcher) OnError(fn func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Start begins polling in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.stopCh = make(chan struct{})
	stop := w.stopCh
	w.mu.Unlock()

	go w.watchLoop(stop)
}

// Stop stops the polling goroutine.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *Watcher) watchLoop(stop chan struct{}) {
	ticker := w.clock.Ticker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check reloads the file if it changed since the last successful load and
// reports whether a new config was delivered.
func (w *Watcher) Check() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		return false
	}

	w.mu.Lock()
	changed := !info.ModTime().Equal(w.baseline)
	onChange, onError := w.onChange, w.onError
	w.mu.Unlock()
	if !changed {
		return false
	}

	cfg, err := Load(w.path)
	if err != nil {
		if onError != nil {
			onError(err)
		}
		return false
	}

	w.mu.Lock()
	w.baseline = info.ModTime()
	w.mu.Unlock()

	if onChange != nil {
		onChange(cfg)
	}
	return true
}
