package descriptor

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *changeRecorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) all() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Change(nil), r.changes...)
}

func newTestWatcher(t *testing.T, declared ...string) (*Watcher, string, *changeRecorder) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	w, err := NewWatcher(store, declared, quietEntry())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	rec := &changeRecorder{}
	w.OnChange(rec.record)
	return w, dir, rec
}

func TestWatcherClassifiesEvents(t *testing.T) {
	w, dir, rec := newTestWatcher(t, "input_data1.txt")
	w.debounce = 0

	w.handle(fsnotify.Event{Name: filepath.Join(dir, "input_data2.txt"), Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: filepath.Join(dir, "input_data1.txt"), Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: filepath.Join(dir, "input_data1.txt"), Op: fsnotify.Write})
	w.handle(fsnotify.Event{Name: filepath.Join(dir, "input_data1.txt"), Op: fsnotify.Rename})
	w.handle(fsnotify.Event{Name: filepath.Join(dir, "notes.txt"), Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: filepath.Join(dir, "input_data1.txt"), Op: fsnotify.Chmod})

	assert.Equal(t, []Change{
		{ID: "input_data2.txt", Kind: ChangeAdded},
		{ID: "input_data1.txt", Kind: ChangeModified},
		{ID: "input_data1.txt", Kind: ChangeModified},
		{ID: "input_data1.txt", Kind: ChangeRemoved},
	}, rec.all())
}

func TestWatcherDebouncesModifications(t *testing.T) {
	w, dir, rec := newTestWatcher(t, "input_data1.txt")
	w.debounce = time.Hour

	for i := 0; i < 3; i++ {
		w.handle(fsnotify.Event{Name: filepath.Join(dir, "input_data1.txt"), Op: fsnotify.Write})
	}

	assert.Len(t, rec.all(), 1)
}

func TestWatcherReportsNewDescriptorOnDisk(t *testing.T) {
	w, dir, rec := newTestWatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "input_data9.txt", "a.exe\np\n10.0.0.1\n")

	assert.Eventually(t, func() bool {
		for _, c := range rec.all() {
			if c.ID == "input_data9.txt" && c.Kind == ChangeAdded {
				return true
			}
		}
		return false
	}, 5*time.Second, 20*time.Millisecond)

	for _, c := range rec.all() {
		assert.NotEqual(t, "notes.txt", c.ID)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}
