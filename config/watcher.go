package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces the burst of write events editors emit when
// saving a file.
const debounceWindow = 200 * time.Millisecond

// Watcher reloads the config file when it changes on disk and delivers
// each valid new configuration on Changes. Invalid edits are logged and
// dropped; the previous configuration stays in effect.
type Watcher struct {
	fw      *fsnotify.Watcher
	path    string
	changes chan *Config
	stop    chan struct{}
	done    chan struct{}
}

// Watch starts watching the config file at path. The parent directory is
// watched rather than the file itself because most editors replace the
// file on save, which drops a file-level watch.
func Watch(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	w := &Watcher{
		fw:      fw,
		path:    path,
		changes: make(chan *Config, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Changes delivers each valid reloaded configuration.
func (w *Watcher) Changes() <-chan *Config { return w.changes }

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	err := w.fw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)

		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFrom(w.path)
	if err != nil {
		slog.Warn("config reload rejected", "error", err)
		return
	}

	// Keep only the newest pending config when the consumer is busy.
	select {
	case w.changes <- cfg:
	default:
		select {
		case <-w.changes:
		default:
		}
		w.changes <- cfg
	}
}
