package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"otterly/log"
)

const reloadDelay = 100 * time.Millisecond

// Watch reloads the store whenever config.json changes on disk and then
// calls onChange. The directory is watched rather than the file because
// editors often replace files on save. Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config watch: %w", err)
	}
	defer w.Close()

	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("config watch %s: %w", s.dir, err)
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != FileName {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				pending = time.After(reloadDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("config watch error: %v", err)
		case <-pending:
			pending = nil
			if err := s.Reload(); err != nil {
				log.Warnf("config reload failed: %v", err)
				continue
			}
			log.Info("config_reloaded")
			if onChange != nil {
				onChange()
			}
		}
	}
}
