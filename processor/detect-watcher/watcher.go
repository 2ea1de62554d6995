// Package detectwatcher reclassifies diagram files as they change on disk.
package detectwatcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/diagramtype/service"
	"github.com/c360studio/diagramtype/source"
)

const (
	// eventChannelBuffer is the size of the watch event channel.
	eventChannelBuffer = 500

	// DefaultDebounce is used when no debounce delay is configured.
	DefaultDebounce = 500 * time.Millisecond
)

// FileDetector classifies every diagram block in file content. The filename
// selects the extractor. *service.Service satisfies it.
type FileDetector interface {
	DetectContent(filename string, content []byte) ([]service.FileResult, error)
}

// Operation indicates the type of file change.
type Operation string

// OpCreate, OpModify, and OpDelete enumerate the file change types.
const (
	OpCreate Operation = "create"
	OpModify Operation = "modify"
	OpDelete Operation = "delete"
)

// Event is emitted once per debounced file change.
type Event struct {
	// Path is the file path relative to the watched root.
	Path string `json:"path"`

	// AbsPath is the absolute file path.
	AbsPath string `json:"-"`

	Op Operation `json:"op"`

	// Results holds one entry per diagram block. Empty for deletes.
	Results []service.FileResult `json:"results,omitempty"`

	// Error is set when the file could not be read or extracted.
	Error string `json:"error,omitempty"`
}

// Watcher watches a directory tree and reclassifies changed files.
type Watcher struct {
	root     string
	filter   source.Filter
	debounce time.Duration
	detector FileDetector
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	// Debouncing: collect changes before processing
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// Hash-based change detection, keyed by relative path
	hashMu sync.RWMutex
	hashes map[string]string

	events chan Event

	droppedEvents atomic.Int64
}

// New creates a watcher for root. A non-positive debounce uses DefaultDebounce.
func New(root string, filter source.Filter, debounce time.Duration, detector FileDetector, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		root:     abs,
		filter:   filter,
		debounce: debounce,
		detector: detector,
		watcher:  fsw,
		logger:   logger,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		events:   make(chan Event, eventChannelBuffer),
	}, nil
}

// Events returns the channel of change events. It is closed once the
// watcher stops.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start seeds content hashes for existing files, adds watches for the tree
// and begins processing until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)

	w.logger.Info("Diagram watcher started",
		"root", w.root,
		"debounce", w.debounce,
		"extensions", w.filter.Extensions)

	return nil
}

// Stop stops the watcher.
// The events channel is closed by processEvents when it exits.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

// SetHash records the content hash for a relative path.
func (w *Watcher) SetHash(path, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[path] = hash
}

// GetHash returns the recorded content hash for a relative path.
func (w *Watcher) GetHash(path string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	hash, ok := w.hashes[path]
	return hash, ok
}

// DroppedEvents returns the number of events dropped due to channel overflow.
func (w *Watcher) DroppedEvents() int64 {
	return w.droppedEvents.Load()
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// addWatchesRecursive watches every directory under root and records the
// hash of every accepted file.
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			if w.filter.Accepts(path) {
				if content, err := os.ReadFile(path); err == nil {
					w.SetHash(w.rel(path), contentHash(content))
				}
			}
			return nil
		}

		// Skip excluded and hidden directories
		if path != root && w.skipDir(path) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory",
				"path", path,
				"error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}
		return nil
	})
}

func (w *Watcher) skipDir(path string) bool {
	return w.filter.Excludes(path) || strings.HasPrefix(filepath.Base(path), ".")
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return path
	}
	return rel
}

// processEvents handles fsnotify events with debouncing.
func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending(ctx)
		}
	}
}

// handleFSEvent records a single fsnotify event as pending.
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := event.Name

	if !w.filter.Accepts(path) {
		// New directories need their own watch
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.handleNewDirectory(path)
			}
		}
		return
	}

	// Files inside excluded directories are never watched directly, but a
	// directory created before its watch was added can still leak events.
	for dir := filepath.Dir(path); dir != w.root && strings.HasPrefix(dir, w.root); dir = filepath.Dir(dir) {
		if w.skipDir(dir) {
			return
		}
	}

	w.pendingMu.Lock()
	w.pending[path] |= event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Diagram change detected",
		"path", w.rel(path),
		"op", event.Op.String())
}

// handleNewDirectory adds a watch to a newly created directory.
func (w *Watcher) handleNewDirectory(path string) {
	if w.skipDir(path) {
		return
	}
	if err := w.addWatchesRecursive(path); err != nil {
		w.logger.Warn("Failed to watch new directory",
			"path", path,
			"error", err)
	}
}

// flushPending classifies accumulated changes.
func (w *Watcher) flushPending(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath := w.rel(path)
		event := Event{Path: relPath, AbsPath: path}

		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) || op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
				w.hashMu.Lock()
				_, tracked := w.hashes[relPath]
				delete(w.hashes, relPath)
				w.hashMu.Unlock()

				if tracked {
					event.Op = OpDelete
					w.sendEvent(event)
				}
				continue
			}
			w.logger.Warn("Failed to read changed file",
				"path", relPath,
				"error", err)
			continue
		}

		newHash := contentHash(content)
		oldHash, hadHash := w.GetHash(relPath)
		if hadHash && oldHash == newHash {
			continue
		}
		w.SetHash(relPath, newHash)

		if hadHash {
			event.Op = OpModify
		} else {
			event.Op = OpCreate
		}

		results, err := w.detector.DetectContent(path, content)
		if err != nil {
			event.Error = err.Error()
		} else {
			event.Results = results
		}

		w.sendEvent(event)
	}
}

// sendEvent sends an event to the output channel.
func (w *Watcher) sendEvent(event Event) {
	select {
	case w.events <- event:
		w.logger.Debug("Sent watch event",
			"path", event.Path,
			"op", event.Op)
	default:
		dropped := w.droppedEvents.Add(1)
		w.logger.Warn("Event channel full, dropping event",
			"path", event.Path,
			"total_dropped", dropped)
	}
}
