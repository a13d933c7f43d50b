package memory

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// SourceWatcher watches a document directory and triggers re-indexing when
// source files change. Events are debounced so a burst of writes produces
// one sync.
type SourceWatcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onChange func()
	debounce time.Duration
	timer    *time.Timer
	stopCh   chan struct{}
}

// NewSourceWatcher creates and starts a watcher. onChange is called after
// the debounce window closes.
func NewSourceWatcher(logger zerolog.Logger, onChange func()) (*SourceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	sw := &SourceWatcher{
		watcher:  watcher,
		logger:   logger,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
	}

	go sw.run()

	return sw, nil
}

// Watch starts watching a directory
func (sw *SourceWatcher) Watch(path string) error {
	return sw.watcher.Add(path)
}

// Stop stops the watcher
func (sw *SourceWatcher) Stop() error {
	close(sw.stopCh)
	return sw.watcher.Close()
}

func (sw *SourceWatcher) run() {
	for {
		select {
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}

			if !isSourceFile(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				sw.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Source file change detected")

				sw.scheduleChange()
			}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			sw.logger.Error().Err(err).Msg("Source watcher error")

		case <-sw.stopCh:
			return
		}
	}
}

func (sw *SourceWatcher) scheduleChange() {
	if sw.timer != nil {
		sw.timer.Stop()
	}

	sw.timer = time.AfterFunc(sw.debounce, sw.onChange)
}
