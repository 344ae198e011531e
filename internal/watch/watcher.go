// Package watch notifies when a single file is rewritten on disk.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates the file was created, including replacement by rename.
	OpCreate EventOp = iota
	// OpModify indicates the file was written in place.
	OpModify
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	default:
		return "unknown"
	}
}

// FileEvent reports a change of the watched file.
type FileEvent struct {
	// Path is the absolute path of the watched file.
	Path string
	// Op is the last operation seen within the debounce window.
	Op EventOp
}

// FileWatcher watches one file. It watches the parent directory so that
// editors which save through a temporary file and rename are still seen.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	events   chan FileEvent
	errors   chan error
	done     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	closed   bool
	path     string
	debounce time.Duration
}

// NewFileWatcher creates a FileWatcher. Bursts of events closer together than
// debounce are reported once; zero reports every event.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher(debounce time.Duration) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher:  watcher,
		events:   make(chan FileEvent, 16),
		errors:   make(chan error, 4),
		done:     make(chan struct{}),
		debounce: debounce,
	}, nil
}

// Start begins watching path. The file's directory must exist.
func (fw *FileWatcher) Start(path string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}
	if fw.closed {
		return fmt.Errorf("watcher already stopped")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	fw.path = abs

	if err := fw.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(abs), err)
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching and releases the underlying watcher. It blocks until
// the event goroutine has exited. Stop is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.closed {
		fw.mu.Unlock()
		return nil
	}
	wasRunning := fw.running
	fw.running = false
	fw.closed = true
	fw.mu.Unlock()

	close(fw.done)

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	if wasRunning {
		fw.wg.Wait()
	}

	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel of change notifications. It is closed by Stop.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel of watcher errors. It is closed by Stop.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

// processEvents filters directory events down to the watched file and
// coalesces bursts.
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	var (
		pending *FileEvent
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	emit := func(ev FileEvent) bool {
		select {
		case fw.events <- ev:
			return true
		case <-fw.done:
			return false
		}
	}

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			ev, ok := fw.convertEvent(event)
			if !ok {
				continue
			}
			if fw.debounce <= 0 {
				if !emit(ev) {
					return
				}
				continue
			}
			pending = &ev
			if timer == nil {
				timer = time.NewTimer(fw.debounce)
			} else {
				timer.Reset(fw.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if pending != nil {
				ev := *pending
				pending = nil
				if !emit(ev) {
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// convertEvent maps an fsnotify event to a FileEvent. Events for other files,
// removals and chmods are ignored; a rename onto the file shows up as create.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (FileEvent, bool) {
	abs, err := filepath.Abs(event.Name)
	if err != nil || abs != fw.path {
		return FileEvent{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	default:
		return FileEvent{}, false
	}

	return FileEvent{Path: fw.path, Op: op}, true
}
