// Package watch adapts the teacher's fsnotify-based filesystem watcher
// (internal/runtime/vfs/watch_fsnotify.go) to this module's own needs:
// re-running the optimize→freeze pipeline whenever the fixture file
// cmd/coreopt was given (module and directives together) changes.
package watch

import (
	"github.com/fsnotify/fsnotify"
)

// Op indicates a change operation reported for a watched path.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

// Event is a single filesystem change, decoupled from fsnotify's own event
// type so callers never import fsnotify directly.
type Event struct {
	Path string
	Op   Op
}

// Watcher forwards OS filesystem notifications for the paths added to it
// through a buffered channel.
type Watcher struct {
	w   *fsnotify.Watcher
	evC chan Event
	erC chan error
}

// New starts a Watcher. Its background goroutine runs until Close.
func New() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &Watcher{w: w, evC: make(chan Event, 128), erC: make(chan error, 1)}
	go fw.loop()
	return fw, nil
}

func (fw *Watcher) loop() {
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			var op Op
			if ev.Op&fsnotify.Create != 0 {
				op |= OpCreate
			}
			if ev.Op&fsnotify.Write != 0 {
				op |= OpWrite
			}
			if ev.Op&fsnotify.Remove != 0 {
				op |= OpRemove
			}
			if ev.Op&fsnotify.Rename != 0 {
				op |= OpRename
			}
			if ev.Op&fsnotify.Chmod != 0 {
				op |= OpChmod
			}
			fw.evC <- Event{Path: ev.Name, Op: op}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			fw.erC <- err
		}
	}
}

func (fw *Watcher) Events() <-chan Event  { return fw.evC }
func (fw *Watcher) Errors() <-chan error  { return fw.erC }
func (fw *Watcher) Add(name string) error { return fw.w.Add(name) }
func (fw *Watcher) Close() error          { return fw.w.Close() }
