package snipelist

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the list whenever its backing file changes, until ctx is
// cancelled. The parent directory is watched rather than the file itself,
// so editors that replace the file (write temp, rename over) keep working.
func (l *List) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(l.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := l.Reload(); err != nil {
				l.log.Warn().Err(err).Msg("snipe list reload failed")
			} else {
				l.log.Info().Int("entries", l.Len()).Msg("snipe list reloaded")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			l.log.Warn().Err(err).Msg("snipe list watcher error")
		}
	}
}
