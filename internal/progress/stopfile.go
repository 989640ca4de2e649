package progress

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// StopFile requests a stop once a file appears at a fixed path.
type StopFile struct {
	path    string
	watcher *fsnotify.Watcher
	stop    atomic.Bool
	done    chan struct{}
}

// WatchStopFile watches the directory holding path. A file already present
// counts as a stop request.
func WatchStopFile(path string) (*StopFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	s := &StopFile{path: abs, watcher: w, done: make(chan struct{})}
	if _, err := os.Stat(abs); err == nil {
		s.stop.Store(true)
	} else if !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("stat stop file %s: %v", abs, err)
	}
	go s.run()
	return s, nil
}

func (s *StopFile) run() {
	defer close(s.done)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) == s.path && (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
				if !s.stop.Swap(true) {
					logrus.Infof("stop file %s detected", s.path)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("stop file watcher: %v", err)
		}
	}
}

// Path is the absolute path being watched for.
func (s *StopFile) Path() string { return s.path }

func (s *StopFile) Report(Event) {}

func (s *StopFile) ShouldStop(int) bool { return s.stop.Load() }

// Close stops watching and waits for the watch goroutine to exit.
func (s *StopFile) Close() error {
	err := s.watcher.Close()
	<-s.done
	return err
}
