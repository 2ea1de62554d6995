package detect

import (
	"log/slog"
	"sync"
)

// DefaultKey is returned by Classify when no registered detector matches.
const DefaultKey = "flowchart"

// Config is the opaque option bag handed to detectors. The registry never
// inspects it.
type Config map[string]any

// Detector reports whether normalized text belongs to its category.
// Detectors must not modify their arguments.
type Detector func(text string, cfg Config) bool

// Record is what the registry stores for one category key.
type Record struct {
	Detector Detector
	// Locator is opaque to this package; callers use it to load the grammar.
	Locator string
}

type entry struct {
	key    string
	record Record
}

// Registry is an ordered, thread-safe key → Record table.
//
// Registration order is the tie-break order for Classify. Registration is
// expected to happen before classification traffic starts, but late
// registration is safe.
type Registry struct {
	mu      sync.RWMutex
	entries []entry
	index   map[string]int

	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		index:  make(map[string]int),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register stores detector and locator under key. Registering an existing
// key replaces its record in place; the key keeps its original position.
// A nil detector is stored but never matches.
func (r *Registry) Register(key string, detector Detector, locator string) {
	r.mu.Lock()
	rec := Record{Detector: detector, Locator: locator}
	i, replaced := r.index[key]
	if replaced {
		r.entries[i].record = rec
	} else {
		r.index[key] = len(r.entries)
		r.entries = append(r.entries, entry{key: key, record: rec})
	}
	r.mu.Unlock()

	r.logger.Debug("Registered detector",
		slog.String("key", key),
		slog.String("locator", locator),
		slog.Bool("replaced", replaced))
}

// LocatorFor returns the locator registered for key.
// The boolean is false when key is unknown.
func (r *Registry) LocatorFor(key string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[key]
	if !ok {
		return "", false
	}
	return r.entries[i].record.Locator, true
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// snapshot copies the entry table so detectors run without holding the lock.
func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]entry, len(r.entries))
	copy(out, r.entries)
	return out
}
