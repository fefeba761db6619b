package server

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Fepozopo/nmedit/pkg/imageio"
)

// watchDebounce groups bursts of events (an editor saving, a copy in progress)
// into one rescan.
const watchDebounce = 250 * time.Millisecond

// watchFolder rescans the image folder when image files appear, change or
// go away. Files written by Save are ignored.
func (s *Server) watchFolder() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(s.cfg.ImageDir); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-done:
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name := filepath.Base(ev.Name)
				if !imageio.HasImageExt(name) || imageio.IsOutput(name) {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(watchDebounce)
				} else {
					timer.Reset(watchDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if err := s.catalog.refresh(); err != nil {
					s.log.Warn("folder rescan", "dir", s.cfg.ImageDir, "err", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn("folder watch", "err", err)
			}
		}
	}()
	return func() {
		close(done)
		w.Close()
	}, nil
}
