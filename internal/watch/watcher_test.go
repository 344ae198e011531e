package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitForEvent returns the next event or fails after timeout.
func waitForEvent(t *testing.T, fw *FileWatcher, timeout time.Duration) FileEvent {
	t.Helper()
	select {
	case ev, ok := <-fw.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case err := <-fw.Errors():
		t.Fatalf("watcher error: %v", err)
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
	}
	return FileEvent{}
}

func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher(0)
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if fw.IsRunning() {
		t.Error("newly created watcher should not be running")
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.xlsx")

	fw, err := NewFileWatcher(0)
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(path); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("watcher should be running after Start()")
	}
	if err := fw.Start(path); err == nil {
		t.Error("second Start() should fail")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("watcher should not be running after Stop()")
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
	if err := fw.Start(path); err == nil {
		t.Error("Start() after Stop() should fail")
	}
}

func TestFileWatcher_MissingDirectory(t *testing.T) {
	fw, err := NewFileWatcher(0)
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(filepath.Join(t.TempDir(), "nope", "rows.xlsx")); err == nil {
		t.Error("Start() should fail for a missing directory")
	}
}

func TestFileWatcher_ReportsWatchedFileOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.xlsx")

	fw, err := NewFileWatcher(0)
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(path); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.xlsx"), []byte("x"), 0644); err != nil {
		t.Fatalf("write other file: %v", err)
	}
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatalf("write watched file: %v", err)
	}

	ev := waitForEvent(t, fw, 2*time.Second)
	if ev.Path != path {
		t.Errorf("event path = %s, want %s", ev.Path, path)
	}
	if ev.Op != OpCreate && ev.Op != OpModify {
		t.Errorf("unexpected op %v", ev.Op)
	}
}

func TestFileWatcher_RenameOntoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.xlsx")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatalf("write watched file: %v", err)
	}

	fw, err := NewFileWatcher(0)
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()
	if err := fw.Start(path); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	tmp := filepath.Join(dir, "~rows.tmp")
	if err := os.WriteFile(tmp, []byte("v2"), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	ev := waitForEvent(t, fw, 2*time.Second)
	if ev.Op != OpCreate {
		t.Errorf("op = %v, want create", ev.Op)
	}
}

func TestFileWatcher_Debounce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.xlsx")

	fw, err := NewFileWatcher(200 * time.Millisecond)
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()
	if err := fw.Start(path); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte{byte(i)}, 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	waitForEvent(t, fw, 2*time.Second)

	select {
	case ev := <-fw.Events():
		t.Errorf("burst produced a second event: %+v", ev)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestEventOpString(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{EventOp(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
