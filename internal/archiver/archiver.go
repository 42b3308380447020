// Package archiver writes device history into the time-series store in
// the layout the reader queries: one values measurement per device,
// plus the __EVENTS and __SCHEMAS companions for lifecycle rows and
// schema blobs.
package archiver

import (
	"fmt"
	"time"

	"github.com/nerrad567/datalog-core/internal/karabo"
)

// Logger defines the logging interface used by the Archiver.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// PointWriter is the slice of the store client the archiver writes
// through. Writes are fire-and-forget; failures surface via the
// writer's own error callback.
type PointWriter interface {
	WritePoint(measurement string, fields map[string]interface{}, timestamp time.Time)
	Flush()
}

// Event row type markers in the __EVENTS measurement.
const (
	eventLogin        = "LOG+"
	eventLogout       = "LOG-"
	eventSchemaChange = "SCHEMA"
)

// Measurement name suffixes for a device's companions.
const (
	eventsSuffix  = "__EVENTS"
	schemasSuffix = "__SCHEMAS"
)

// Archiver converts device observations into store rows. One archiver
// serves any number of devices; it holds no per-device state.
type Archiver struct {
	w   PointWriter
	log Logger
}

// New creates an archiver writing through the given store client.
func New(w PointWriter) *Archiver {
	return &Archiver{w: w, log: noopLogger{}}
}

// SetLogger sets the logger for the archiver.
func (a *Archiver) SetLogger(log Logger) {
	a.log = log
}

// LogValue records one property observation. The field name carries the
// type tag so readers can recover the native type; the train id rides
// along as _tid.
//
// Numeric and bool families are stored natively; strings, vectors and
// hashes are stored in their logged text form with newlines mangled.
func (a *Archiver) LogValue(deviceID, key string, t karabo.Type, value any, ts karabo.Timestamp) error {
	cell, err := storeCell(t, value)
	if err != nil {
		return fmt.Errorf("archiving %s.%s: %w", deviceID, key, err)
	}
	fields := map[string]interface{}{
		karabo.FieldName(key, t): cell,
		"_tid":                   int64(ts.Tid),
	}
	a.w.WritePoint(deviceID, fields, ts.Time())
	return nil
}

// LogLogin records a device coming online under the given user.
func (a *Archiver) LogLogin(deviceID, user string, ts karabo.Timestamp) {
	a.w.WritePoint(deviceID+eventsSuffix, map[string]interface{}{
		"type":        eventLogin,
		"karabo_user": user,
	}, ts.Time())
}

// LogLogout records a device going offline.
func (a *Archiver) LogLogout(deviceID string, ts karabo.Timestamp) {
	a.w.WritePoint(deviceID+eventsSuffix, map[string]interface{}{
		"type": eventLogout,
	}, ts.Time())
}

// LogSchema records a schema change: the full blob goes into the
// schemas companion keyed by content digest, and a SCHEMA event row
// marks when the digest took effect. Returns the digest.
func (a *Archiver) LogSchema(deviceID string, schema *karabo.Schema, ts karabo.Timestamp) (string, error) {
	digest, err := schema.Digest()
	if err != nil {
		return "", fmt.Errorf("archiving schema for %s: %w", deviceID, err)
	}
	blob, err := schema.EncodeBlob()
	if err != nil {
		return "", fmt.Errorf("archiving schema for %s: %w", deviceID, err)
	}

	a.w.WritePoint(deviceID+schemasSuffix, map[string]interface{}{
		"digest": digest,
		"schema": blob,
	}, ts.Time())
	a.w.WritePoint(deviceID+eventsSuffix, map[string]interface{}{
		"type":          eventSchemaChange,
		"schema_digest": digest,
	}, ts.Time())

	a.log.Debug("schema archived", "device", deviceID, "digest", digest)
	return digest, nil
}

// Flush forces delivery of buffered rows.
func (a *Archiver) Flush() {
	a.w.Flush()
}

// storeCell converts a native value into its stored form.
func storeCell(t karabo.Type, value any) (any, error) {
	switch {
	case t == karabo.Bool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T for %s", karabo.ErrBadValue, value, t)
		}
		return b, nil
	case t.IsNumeric():
		return numericCell(t, value)
	default:
		s, err := karabo.Format(t, value)
		if err != nil {
			return nil, err
		}
		return karabo.EscapeLogged(s), nil
	}
}

// numericCell widens integer families to int64 and float families to
// float64, the two numeric shapes the store accepts.
func numericCell(t karabo.Type, value any) (any, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		// #nosec G115 -- train-scale values stay well under the sign bit
		return int64(v), nil
	}
	return nil, fmt.Errorf("%w: %T for %s", karabo.ErrBadValue, value, t)
}
