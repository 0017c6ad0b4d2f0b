package descriptor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ChangeKind classifies a workspace change.
type ChangeKind string

const (
	// ChangeAdded is a new descriptor file. It is not supervised until restart.
	ChangeAdded ChangeKind = "added"
	// ChangeRemoved is a deleted or renamed descriptor file.
	ChangeRemoved ChangeKind = "removed"
	// ChangeModified is a write to an existing descriptor; it applies on the next pass.
	ChangeModified ChangeKind = "modified"
)

// Change describes a descriptor file event.
type Change struct {
	ID   string
	Kind ChangeKind
}

// Watcher reports descriptor file changes in the workspace. The set of
// supervised sessions is fixed at startup, so changes are only surfaced.
type Watcher struct {
	store      *Store
	watcher    *fsnotify.Watcher
	declared   map[string]bool
	debounce   time.Duration
	lastChange map[string]time.Time
	mu         sync.Mutex
	logger     *logrus.Entry
	onChange   func(Change)
}

// NewWatcher watches the store's workspace. declared is the set of ids
// captured by the startup scan.
func NewWatcher(store *Store, declared []string, logger *logrus.Entry) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(store.Dir()); err != nil {
		w.Close()
		return nil, err
	}

	set := make(map[string]bool, len(declared))
	for _, id := range declared {
		set[id] = true
	}

	return &Watcher{
		store:      store,
		watcher:    w,
		declared:   set,
		debounce:   250 * time.Millisecond,
		lastChange: make(map[string]time.Time),
		logger:     logger,
	}, nil
}

// OnChange registers a callback invoked for every reported change.
func (w *Watcher) OnChange(fn func(Change)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start processes events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Workspace watcher error")
		case <-ctx.Done():
			w.watcher.Close()
			return
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	id := filepath.Base(event.Name)
	if !w.store.IsDescriptor(id) {
		return
	}

	var kind ChangeKind
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = ChangeAdded
		if w.declared[id] {
			kind = ChangeModified
		}
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		kind = ChangeRemoved
	case event.Op&fsnotify.Write != 0:
		kind = ChangeModified
	default:
		return
	}

	w.mu.Lock()
	if kind == ChangeModified && time.Since(w.lastChange[id]) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.lastChange[id] = time.Now()
	callback := w.onChange
	w.mu.Unlock()

	fields := logrus.Fields{"session": id, "change": kind}
	switch {
	case kind == ChangeAdded:
		w.logger.WithFields(fields).Warn("New session descriptor will be supervised after restart")
	case kind == ChangeRemoved && w.declared[id]:
		w.logger.WithFields(fields).Warn("Supervised session descriptor removed; it will be skipped until restored")
	case kind == ChangeModified && w.declared[id]:
		w.logger.WithFields(fields).Debug("Session descriptor changed; applying on next pass")
	default:
		w.logger.WithFields(fields).Debug("Workspace changed")
	}

	if callback != nil {
		callback(Change{ID: id, Kind: kind})
	}
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
