package config

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spaghettifunk/multibatch/engine/core"
)

// Watcher reloads a configuration file whenever it changes on disk and
// delivers every config that loads and validates on Configs. Files that
// fail to load are reported on Errors and otherwise ignored.
type Watcher struct {
	path string

	fsnotify *fsnotify.Watcher
	configs  chan *Config
	errors   chan error

	done     chan struct{}
	wg       sync.WaitGroup
	mutex    sync.Mutex
	isClosed bool
}

func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := FormatFromPath(abs); err != nil {
		return nil, err
	}
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Editors replace files by renaming over them, so the directory is
	// watched rather than the file itself.
	if err := fsWatch.Add(filepath.Dir(abs)); err != nil {
		fsWatch.Close()
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		fsnotify: fsWatch,
		configs:  make(chan *Config, 1),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.start()
	return w, nil
}

func (w *Watcher) Configs() <-chan *Config { return w.configs }

func (w *Watcher) Errors() <-chan error { return w.errors }

func (w *Watcher) Path() string { return w.path }

func (w *Watcher) Close() error {
	w.mutex.Lock()
	if w.isClosed {
		w.mutex.Unlock()
		return errors.New("config watcher already closed")
	}
	w.isClosed = true
	w.mutex.Unlock()

	close(w.done)
	w.wg.Wait()
	return nil
}

func (w *Watcher) start() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != w.path || e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				core.LogWarn("ignoring configuration change: %s", err)
				w.send(nil, err)
				continue
			}
			core.LogInfo("configuration %s reloaded", w.path)
			w.send(cfg, nil)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			core.LogError(err.Error())
			w.send(nil, err)

		case <-w.done:
			w.fsnotify.Close()
			close(w.configs)
			close(w.errors)
			return
		}
	}
}

// send keeps only the latest pending config or error so a slow consumer
// never blocks the watch loop.
func (w *Watcher) send(cfg *Config, err error) {
	if cfg != nil {
		select {
		case <-w.configs:
		default:
		}
		w.configs <- cfg
		return
	}
	select {
	case <-w.errors:
	default:
	}
	w.errors <- err
}
