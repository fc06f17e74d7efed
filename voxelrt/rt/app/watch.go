package app

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reports changes to one file. It watches the parent directory
// so editors that replace the file on save are still seen.
type FileWatcher struct {
	Changes <-chan struct{}

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchFile starts watching path. Bursts of events within settle are folded
// into a single change. onErr may be nil.
func WatchFile(path string, settle time.Duration, onErr func(error)) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	changes := make(chan struct{}, 1)
	fw := &FileWatcher{Changes: changes, watcher: w, done: make(chan struct{})}

	done := fw.done
	go func() {
		var timer <-chan time.Time
		for {
			select {
			case <-done:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					timer = time.After(settle)
				}
			case <-timer:
				timer = nil
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				if onErr != nil {
					onErr(err)
				}
			}
		}
	}()
	return fw, nil
}

func (fw *FileWatcher) Close() error {
	if fw.done == nil {
		return nil
	}
	close(fw.done)
	fw.done = nil
	return fw.watcher.Close()
}
