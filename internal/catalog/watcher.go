package catalog

import (
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher watches a directory of fixture files (e.g. JSON artist
// profiles used by matchctl in dev/batch mode) and debounces bursts of
// filesystem events into a single reload trigger, since a catalog
// export typically touches many files within the same instant.
type Watcher struct {
	fsw *fsnotify.Watcher
	log zerolog.Logger
}

// NewWatcher builds a Watcher rooted at dir.
func NewWatcher(log zerolog.Logger, dir string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fsw.Add(path)
		}
		return nil
	}); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, log: log}, nil
}

// Start begins watching in the background and returns a channel that
// fires once per debounce window in which at least one filesystem
// event occurred. The channel is closed when ctx-independent Close is
// called; callers should range over it until then.
func (w *Watcher) Start(debounce time.Duration) <-chan struct{} {
	reload := make(chan struct{}, 1)
	go func() {
		defer close(reload)
		var timer *time.Timer
		var timerC <-chan time.Time
		for {
			select {
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				w.log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("catalog fixture change detected")
				if timer == nil {
					timer = time.NewTimer(debounce)
					timerC = timer.C
				} else {
					timer.Reset(debounce)
				}
			case <-timerC:
				select {
				case reload <- struct{}{}:
				default:
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				w.log.Warn().Err(err).Msg("catalog watcher error")
			}
		}
	}()
	return reload
}

// Close stops the watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }
