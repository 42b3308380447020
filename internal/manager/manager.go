// Package manager tracks which historic-data reader owns each logged
// device. The map is rebuilt from the store's measurement list: every
// measurement that is not an events or schemas companion is a logged
// device. Subscribers receive the latest map after each refresh.
package manager

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// MeasurementLister is the slice of the store client the registry needs.
type MeasurementLister interface {
	ListMeasurements(ctx context.Context, db string) ([]string, error)
}

// Suffixes marking a device's companion measurements.
const (
	eventsSuffix  = "__EVENTS"
	schemasSuffix = "__SCHEMAS"
)

// Registry maps logged device ids to the reader instance that answers
// for them.
//
// All public methods are thread-safe.
type Registry struct {
	store    MeasurementLister
	db       string
	readerID string

	mu      sync.RWMutex
	devices map[string]string

	subsMu sync.Mutex
	subs   []func(map[string]string)

	logger Logger
}

// NewRegistry creates a registry that assigns every logged device in the
// database to the given reader instance id.
func NewRegistry(store MeasurementLister, db, readerID string) *Registry {
	return &Registry{
		store:    store,
		db:       db,
		readerID: readerID,
		devices:  make(map[string]string),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Refresh rebuilds the device map from the store's measurement list and
// notifies subscribers.
func (r *Registry) Refresh(ctx context.Context) error {
	measurements, err := r.store.ListMeasurements(ctx, r.db)
	if err != nil {
		return fmt.Errorf("listing measurements: %w", err)
	}

	devices := make(map[string]string)
	for _, name := range measurements {
		if strings.HasSuffix(name, eventsSuffix) || strings.HasSuffix(name, schemasSuffix) {
			continue
		}
		devices[name] = r.readerID
	}

	r.mu.Lock()
	r.devices = devices
	r.mu.Unlock()

	r.logger.Info("device map refreshed", "devices", len(devices))
	r.notify()
	return nil
}

// ReaderFor returns the reader instance id owning a device's logs.
func (r *Registry) ReaderFor(deviceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.devices[deviceID]
	return id, ok
}

// Snapshot returns a copy of the current device map.
func (r *Registry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.devices))
	for k, v := range r.devices {
		out[k] = v
	}
	return out
}

// Subscribe registers a callback invoked with the latest map after each
// refresh. The callback receives its own copy.
func (r *Registry) Subscribe(fn func(map[string]string)) {
	r.subsMu.Lock()
	r.subs = append(r.subs, fn)
	r.subsMu.Unlock()
}

func (r *Registry) notify() {
	snapshot := r.Snapshot()
	r.subsMu.Lock()
	subs := make([]func(map[string]string), len(r.subs))
	copy(subs, r.subs)
	r.subsMu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}
