package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/datalog-core/internal/influx"
	"github.com/nerrad567/datalog-core/internal/karabo"
)

// Event-row type values in a device's events measurement.
const (
	eventLogin        = "LOG+"
	eventLogout       = "LOG-"
	eventSchemaChange = "SCHEMA"
)

// PastConfig is a device configuration reconstructed as of a timepoint.
type PastConfig struct {
	// Config maps property path to value, with sec/frac/tid attributes
	// per entry.
	Config *karabo.Hash
	// Schema is the schema in force at the timepoint.
	Schema *karabo.Schema
	// AtTimepoint reports whether the device was up at the timepoint.
	AtTimepoint bool
	// ConfigTime is the ISO 8601 stamp of the newest entry, empty when
	// the configuration is empty.
	ConfigTime string
}

// GetConfigurationFromPast reconstructs the full configuration of a
// device as of the given ISO 8601 timepoint.
//
// Returns:
//   - *PastConfig: Reconstructed configuration
//   - error: ErrNoSchema when no SCHEMA event exists at or before the
//     timepoint; ErrBadRequest for an unparseable timepoint
func (s *Service) GetConfigurationFromPast(ctx context.Context, deviceID, timepoint string) (*PastConfig, error) {
	tp, err := karabo.ParseISO8601(timepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: timepoint: %v", ErrBadRequest, err)
	}
	before := tp.Micros()
	events := deviceID + "__EVENTS"
	schemas := deviceID + "__SCHEMAS"

	lastLogin, err := s.lastEventTime(ctx, events, "karabo_user", eventLogin, before)
	if err != nil {
		return nil, err
	}
	lastLogout, err := s.lastEventTime(ctx, events, "karabo_user", eventLogout, before)
	if err != nil {
		return nil, err
	}
	// A device that logged in after its last logout was up at the
	// timepoint. Two zeros count as "up since the beginning of time".
	atTimepoint := lastLogout < lastLogin || (lastLogout == 0 && lastLogin == 0)

	digest, err := s.lastSchemaDigest(ctx, events, before)
	if err != nil {
		return nil, err
	}
	schema, err := s.loadSchema(ctx, schemas, digest)
	if err != nil {
		return nil, err
	}

	cfg := karabo.NewHash()
	var latest uint64
	for _, leaf := range schema.Leaves() {
		value, us, err := s.lastLeafValue(ctx, deviceID, leaf, before)
		if errors.Is(err, influx.ErrNoData) {
			continue
		}
		if err != nil {
			s.log.Warn("leaf lookup failed", "device", deviceID, "key", leaf.Path, "err", err)
			continue
		}
		ts := karabo.FromMicros(us)
		cfg.Set(leaf.Path, value)
		cfg.SetAttr(leaf.Path, "sec", ts.Sec)
		cfg.SetAttr(leaf.Path, "frac", ts.Frac)
		cfg.SetAttr(leaf.Path, "tid", uint64(0))
		if us > latest {
			latest = us
		}
	}

	configTime := ""
	if cfg.Len() > 0 {
		configTime = karabo.FromMicros(latest).ISO8601()
	}

	return &PastConfig{
		Config:      cfg,
		Schema:      schema,
		AtTimepoint: atTimepoint,
		ConfigTime:  configTime,
	}, nil
}

// lastEventTime returns the microsecond time of the most recent event of
// the given type at or before the timepoint, 0 when none exists.
func (s *Service) lastEventTime(ctx context.Context, measurement, field, eventType string, before uint64) (uint64, error) {
	where := fmt.Sprintf("\"type\" = '%s'", eventType)
	rs, err := s.store.LastField(ctx, s.db, measurement, field, where, before)
	if errors.Is(err, influx.ErrNoData) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(rs.Rows) == 0 {
		return 0, nil
	}
	us, _ := rs.TimeAt(rs.Rows[0])
	return us, nil
}

// lastSchemaDigest returns the digest recorded by the most recent SCHEMA
// event at or before the timepoint.
func (s *Service) lastSchemaDigest(ctx context.Context, events string, before uint64) (string, error) {
	where := fmt.Sprintf("\"type\" = '%s'", eventSchemaChange)
	rs, err := s.store.LastField(ctx, s.db, events, "schema_digest", where, before)
	if errors.Is(err, influx.ErrNoData) {
		return "", ErrNoSchema
	}
	if err != nil {
		return "", err
	}
	col := rs.ColumnIndex("schema_digest")
	if col < 0 || len(rs.Rows) == 0 || col >= len(rs.Rows[0]) {
		return "", ErrNoSchema
	}
	digest, ok := rs.Rows[0][col].(string)
	if !ok || digest == "" {
		return "", ErrNoSchema
	}
	return digest, nil
}

// loadSchema fetches and decodes the schema blob for a digest.
func (s *Service) loadSchema(ctx context.Context, schemas, digest string) (*karabo.Schema, error) {
	expr := fmt.Sprintf("SELECT LAST(\"schema\") FROM %q WHERE \"digest\" = '%s'", schemas, digest)
	rs, err := s.store.Query(ctx, s.db, expr)
	if errors.Is(err, influx.ErrNoData) {
		return nil, ErrNoSchema
	}
	if err != nil {
		return nil, err
	}
	col := rs.ColumnIndex("schema")
	if col < 0 || len(rs.Rows) == 0 || col >= len(rs.Rows[0]) {
		return nil, ErrNoSchema
	}
	blob, ok := rs.Rows[0][col].(string)
	if !ok {
		return nil, ErrNoSchema
	}
	return karabo.DecodeSchemaBlob(blob)
}

// lastLeafValue returns the most recent value of one schema leaf at or
// before the timepoint, with its microsecond timestamp.
func (s *Service) lastLeafValue(ctx context.Context, deviceID string, leaf karabo.Leaf, before uint64) (any, uint64, error) {
	field := karabo.FieldName(leaf.Path, leaf.Type)
	rs, err := s.store.LastField(ctx, s.db, deviceID, field, "", before)
	if err != nil {
		return nil, 0, err
	}
	col := rs.ColumnIndex(field)
	if col < 0 || len(rs.Rows) == 0 || col >= len(rs.Rows[0]) || rs.Rows[0][col] == nil {
		return nil, 0, influx.ErrNoData
	}
	us, _ := rs.TimeAt(rs.Rows[0])

	var value any
	switch cell := rs.Rows[0][col].(type) {
	case bool:
		value = cell
	case json.Number:
		value, err = karabo.Parse(leaf.Type, cell.String())
	case string:
		if leaf.Type == karabo.String {
			value = karabo.UnescapeLogged(cell)
		} else {
			value, err = karabo.Parse(leaf.Type, cell)
		}
	default:
		err = fmt.Errorf("%w: cell %T", karabo.ErrBadValue, rs.Rows[0][col])
	}
	if err != nil {
		return nil, 0, err
	}
	return value, us, nil
}
