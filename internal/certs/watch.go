package certs

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 200 * time.Millisecond

// Watch reloads the registry whenever a .crt or .key file in its directory
// changes, until ctx is cancelled. Bursts of events are coalesced; onReload,
// if non-nil, is called after each reload with the loaded names.
func (r *Registry) Watch(ctx context.Context, onReload func(names []string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(r.dir); err != nil {
		return err
	}
	r.logger.Info("certs: watcher started", slog.String("dir", r.dir))

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			r.logger.Info("certs: watcher stopped")
			return nil

		case <-timerCh:
			if err := r.Reload(); err != nil {
				r.logger.Warn("certs: reload failed", slog.String("error", err.Error()))
				continue
			}
			if onReload != nil {
				onReload(r.Names())
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, certExt) && !strings.HasSuffix(ev.Name, keyExt) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				timerCh = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("certs: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
