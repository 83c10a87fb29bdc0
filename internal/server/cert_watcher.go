package server

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"resumatch/internal/errors"
)

const certWatchDebounce = time.Second

// CertWatcher raises a callback when any of the configured certificate
// files change on disk. Events are debounced because certificate and key
// are usually replaced as a pair and the reload should see both halves.
type CertWatcher struct {
	files    []string
	debounce time.Duration
	onChange func()
	logger   *errors.Logger

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	timer   *time.Timer
	lastMod map[string]time.Time
	active  bool
}

// NewCertWatcher builds a watcher over the given certificate, key and CA
// paths. Empty paths are skipped. A zero debounce gets a one second
// default.
func NewCertWatcher(certFile, keyFile, caFile string, debounceDelay time.Duration, reloadCallback func(), logger *errors.Logger) (*CertWatcher, error) {
	if logger == nil {
		logger = errors.Discard()
	}

	var files []string
	for _, f := range []string{certFile, keyFile, caFile} {
		if f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no certificate files to watch")
	}
	if debounceDelay <= 0 {
		debounceDelay = certWatchDebounce
	}

	return &CertWatcher{
		files:    files,
		debounce: debounceDelay,
		onChange: reloadCallback,
		logger:   logger,
		lastMod:  make(map[string]time.Time),
	}, nil
}

// Start registers the watch targets and launches the event loop.
func (cw *CertWatcher) Start() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.active {
		return fmt.Errorf("certificate watcher already started")
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	for _, file := range cw.files {
		if err := cw.watchTarget(fs, file); err != nil {
			cw.logger.Warn("Could not watch certificate file", "file", file, "error", err)
		}
	}
	cw.snapshotLocked()

	cw.fs = fs
	cw.active = true
	go cw.watchLoop(fs, make(chan struct{}, 1))

	cw.logger.Info("Watching certificate files", "files", cw.files, "debounce_delay", cw.debounce)
	return nil
}

// Stop closes the filesystem watcher, which in turn ends the event loop.
// Stopping a watcher that never started is a no-op.
func (cw *CertWatcher) Stop() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if !cw.active {
		return nil
	}

	if cw.timer != nil {
		cw.timer.Stop()
	}
	err := cw.fs.Close()
	cw.fs = nil
	cw.active = false

	if err != nil {
		cw.logger.LogError(err, "Closing the filesystem watcher failed")
		return err
	}
	cw.logger.Info("Certificate watch stopped")
	return nil
}

// watchTarget registers a file and its parent directory with fsnotify.
// The directory watch is what catches atomic replacement, where new
// material lands under a temp name and is renamed over the original.
func (cw *CertWatcher) watchTarget(w *fsnotify.Watcher, file string) error {
	dir := filepath.Dir(file)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching directory %s: %w", dir, err)
	}
	if err := w.Add(file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("watching file %s: %w", file, err)
	}
	return nil
}

// watchLoop reacts to filesystem events until the fsnotify watcher is
// closed, which ends both of its channels. No separate stop signal is
// needed, and a fresh loop per Start keeps restarts clean.
func (cw *CertWatcher) watchLoop(w *fsnotify.Watcher, kick chan struct{}) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if cw.relevantEvent(event) {
				cw.scheduleCheck(kick)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			cw.logger.LogError(err, "Certificate file watcher error")

		case <-kick:
			if cw.snapshotModTimes() {
				cw.logger.Info("Certificate files changed on disk, triggering reload")
				cw.onChange()
			}
		}
	}
}

// relevantEvent reports whether an event may concern a watched file.
// Directory watches surface events for every sibling, so names are also
// compared by base: an atomic rename arrives under the final file name
// but the recorded path may differ in form.
func (cw *CertWatcher) relevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	for _, file := range cw.files {
		if event.Name == file || filepath.Base(event.Name) == filepath.Base(file) {
			return true
		}
	}
	return false
}

// scheduleCheck arms the debounce timer. Further events inside the window
// push the check out again.
func (cw *CertWatcher) scheduleCheck(kick chan<- struct{}) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounce, func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	})
}

// snapshotModTimes records the modification time of every watched file
// and reports whether any moved since the previous snapshot. A file that
// disappeared counts once. Every file is visited each pass so a cert and
// key replaced together coalesce into a single reload.
func (cw *CertWatcher) snapshotModTimes() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.snapshotLocked()
}

func (cw *CertWatcher) snapshotLocked() bool {
	changed := false
	for _, file := range cw.files {
		fi, err := os.Stat(file)
		if err != nil {
			if _, seen := cw.lastMod[file]; seen && os.IsNotExist(err) {
				delete(cw.lastMod, file)
				changed = true
			}
			continue
		}
		last, seen := cw.lastMod[file]
		if !seen || fi.ModTime().After(last) {
			cw.lastMod[file] = fi.ModTime()
			changed = true
		}
	}
	return changed
}

// Running reports whether the event loop is active.
func (cw *CertWatcher) Running() bool {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.active
}

// WatchedFiles returns the configured watch targets.
func (cw *CertWatcher) WatchedFiles() []string {
	return slices.Clone(cw.files)
}
