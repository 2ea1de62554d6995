package detectwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/c360studio/diagramtype/detect"
	"github.com/c360studio/diagramtype/detect/builtin"
	"github.com/c360studio/diagramtype/service"
	"github.com/c360studio/diagramtype/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newDetector() *service.Service {
	reg := detect.NewRegistry()
	builtin.Register(reg)
	return service.New(reg)
}

func startWatcher(t *testing.T, root string, detector FileDetector) *Watcher {
	t.Helper()

	w, err := New(root, source.DefaultFilter(), 50*time.Millisecond, detector, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
		// Drain until processEvents closes the channel
		for range w.Events() {
		}
	})

	// Give watcher time to set up
	time.Sleep(100 * time.Millisecond)
	return w
}

func waitEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case event, ok := <-w.Events():
		require.True(t, ok, "events channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for watch event")
		return Event{}
	}
}

func assertNoEvent(t *testing.T, w *Watcher) {
	t.Helper()
	select {
	case event := <-w.Events():
		t.Errorf("unexpected event: %+v", event)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestNew_DefaultDebounce(t *testing.T) {
	w, err := New(t.TempDir(), source.DefaultFilter(), 0, newDetector(), nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.True(t, filepath.IsAbs(w.root))
}

func TestWatcher_FileCreation(t *testing.T) {
	tmpDir := t.TempDir()
	w := startWatcher(t, tmpDir, newDetector())

	testFile := filepath.Join(tmpDir, "flow.mmd")
	require.NoError(t, os.WriteFile(testFile, []byte("sequenceDiagram\n  A->>B: hi\n"), 0644))

	event := waitEvent(t, w)
	assert.Equal(t, OpCreate, event.Op)
	assert.Equal(t, "flow.mmd", event.Path)
	assert.Empty(t, event.Error)
	require.Len(t, event.Results, 1)
	assert.Equal(t, "sequence", event.Results[0].Key)
	assert.Equal(t, "mermaid/diagrams/sequence", event.Results[0].Locator)
}

func TestWatcher_FileModification(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "README.md")
	require.NoError(t, os.WriteFile(testFile, []byte("```mermaid\npie\n```\n"), 0644))

	w := startWatcher(t, tmpDir, newDetector())

	_, seeded := w.GetHash("README.md")
	require.True(t, seeded, "existing files are hashed on start")

	require.NoError(t, os.WriteFile(testFile, []byte("```mermaid\ngantt\n```\n\n```mermaid\njourney\n```\n"), 0644))

	event := waitEvent(t, w)
	assert.Equal(t, OpModify, event.Op)
	require.Len(t, event.Results, 2)
	assert.Equal(t, "gantt", event.Results[0].Key)
	assert.Equal(t, "journey", event.Results[1].Key)
}

func TestWatcher_FileDeletion(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "gone.mmd")
	require.NoError(t, os.WriteFile(testFile, []byte("pie\n"), 0644))

	w := startWatcher(t, tmpDir, newDetector())

	require.NoError(t, os.Remove(testFile))

	event := waitEvent(t, w)
	assert.Equal(t, OpDelete, event.Op)
	assert.Equal(t, "gone.mmd", event.Path)
	assert.Empty(t, event.Results)

	_, tracked := w.GetHash("gone.mmd")
	assert.False(t, tracked)
}

func TestWatcher_UnchangedContent(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "same.mmd")
	require.NoError(t, os.WriteFile(testFile, []byte("pie\n"), 0644))

	w := startWatcher(t, tmpDir, newDetector())

	// Touch with identical content
	require.NoError(t, os.WriteFile(testFile, []byte("pie\n"), 0644))
	assertNoEvent(t, w)
}

func TestWatcher_IgnoresNonWatchedExtensions(t *testing.T) {
	tmpDir := t.TempDir()
	w := startWatcher(t, tmpDir, newDetector())

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "main.go"), []byte("package main"), 0644))
	assertNoEvent(t, w)
}

func TestWatcher_IgnoresExcludedDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	excluded := filepath.Join(tmpDir, "node_modules")
	require.NoError(t, os.MkdirAll(excluded, 0755))

	w := startWatcher(t, tmpDir, newDetector())

	require.NoError(t, os.WriteFile(filepath.Join(excluded, "x.mmd"), []byte("pie\n"), 0644))
	assertNoEvent(t, w)
}

func TestWatcher_NewDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	w := startWatcher(t, tmpDir, newDetector())

	sub := filepath.Join(tmpDir, "docs")
	require.NoError(t, os.MkdirAll(sub, 0755))
	// Let the watcher pick up the new directory
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "g.mmd"), []byte("gitGraph\n"), 0644))

	event := waitEvent(t, w)
	assert.Equal(t, filepath.Join("docs", "g.mmd"), event.Path)
	require.Len(t, event.Results, 1)
	assert.Equal(t, "gitGraph", event.Results[0].Key)
}

type failingDetector struct {
	calls atomic.Int32
}

func (f *failingDetector) DetectContent(string, []byte) ([]service.FileResult, error) {
	f.calls.Add(1)
	return nil, errors.New("extract failed")
}

func TestWatcher_DetectorError(t *testing.T) {
	tmpDir := t.TempDir()
	detector := &failingDetector{}
	w := startWatcher(t, tmpDir, detector)

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "bad.mmd"), []byte("pie\n"), 0644))

	event := waitEvent(t, w)
	assert.Equal(t, OpCreate, event.Op)
	assert.Equal(t, "extract failed", event.Error)
	assert.Equal(t, int32(1), detector.calls.Load())
}

func TestWatcher_StopClosesEvents(t *testing.T) {
	w, err := New(t.TempDir(), source.DefaultFilter(), 50*time.Millisecond, newDetector(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	select {
	case _, ok := <-w.Events():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after Stop")
	}
	assert.Zero(t, w.DroppedEvents())
}
