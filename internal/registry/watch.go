package registry

import (
	"github.com/fsnotify/fsnotify"

	"github.com/PhilosopherRex/snapper/internal/logging"
)

// Watcher re-runs Discover against a fixed set of root directories
// whenever fsnotify reports a change underneath them, forwarding every
// manifest each re-scan finds (not only new ones) on Manifests and scan
// failures on Errors. This is
// a SPEC_FULL addition (spec.md's discover() is a one-shot scan; see
// SPEC_FULL.md Domain Stack for the rationale) — nothing in spec.md
// requires it, so hosts that never call Watch are unaffected.
type Watcher struct {
	dirs      []string
	fsw       *fsnotify.Watcher
	Manifests chan DiscoveredManifest
	Errors    chan DiscoveryError
	done      chan struct{}
}

// NewWatcher creates a Watcher over dirs. Callers must call Start to
// begin watching and Close to release the underlying OS resources.
func NewWatcher(dirs ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		// Best effort: a directory that doesn't exist yet is not watched,
		// and the Watcher never adds it later.
		_ = fsw.Add(d)
	}
	return &Watcher{
		dirs:      dirs,
		fsw:       fsw,
		Manifests: make(chan DiscoveredManifest, 16),
		Errors:    make(chan DiscoveryError, 16),
		done:      make(chan struct{}),
	}, nil
}

// Start runs the watch loop in a new goroutine. Every filesystem event
// under a watched directory triggers a full re-Discover of all dirs;
// callers needing finer-grained incremental updates should diff
// DiscoveryResult.Manifests themselves.
func (w *Watcher) Start() {
	log := logging.Component("registry-watch")
	go func() {
		for {
			select {
			case <-w.done:
				return
			case event, ok := <-w.fsw.Events:
				if !ok {
					return
				}
				log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("fs event, rescanning")
				result := Discover(w.dirs...)
				for _, m := range result.Manifests {
					w.Manifests <- m
				}
				for _, e := range result.Errors {
					w.Errors <- e
				}
			case err, ok := <-w.fsw.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("watcher error")
			}
		}
	}()
}

// Close stops the watch loop and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
