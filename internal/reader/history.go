package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/nerrad567/datalog-core/internal/influx"
	"github.com/nerrad567/datalog-core/internal/karabo"
)

// TimeRange is the caller's window for a property-history request.
// From and To are ISO 8601 strings; To is exclusive.
type TimeRange struct {
	From       string `json:"from"`
	To         string `json:"to"`
	MaxNumData int    `json:"maxNumData"`
}

// GetPropertyHistory returns at most MaxNumData samples of one property
// in [from, to), sorted by time ascending.
//
// Strategy selection: raw retrieval when everything fits, uniform
// sampling when non-averageable families are present, bucket means
// otherwise. See the package documentation.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Logged device (its values measurement)
//   - key: Property key without type suffix
//   - tr: Request window and sample cap
//
// Returns:
//   - []karabo.Sample: Samples, possibly empty; never nil on success
//   - error: ErrBadRequest for unparseable times; store faults pass through
func (s *Service) GetPropertyHistory(ctx context.Context, deviceID, key string, tr TimeRange) ([]karabo.Sample, error) {
	maxCount := tr.MaxNumData
	if maxCount <= 0 {
		return []karabo.Sample{}, nil
	}
	if maxCount > s.maxHistory {
		maxCount = s.maxHistory
	}

	from, err := karabo.ParseISO8601(tr.From)
	if err != nil {
		return nil, fmt.Errorf("%w: from: %v", ErrBadRequest, err)
	}
	to, err := karabo.ParseISO8601(tr.To)
	if err != nil {
		return nil, fmt.Errorf("%w: to: %v", ErrBadRequest, err)
	}
	t0, t1 := from.Micros(), to.Micros()
	if t0 >= t1 {
		return []karabo.Sample{}, nil
	}

	countRegex := fmt.Sprintf("^%s-.*$", key)
	counts, err := s.store.FieldCount(ctx, s.db, deviceID, countRegex, t0, t1)
	if errors.Is(err, influx.ErrNoData) {
		return []karabo.Sample{}, nil
	}
	if err != nil {
		return nil, err
	}

	var total uint64
	nonNumeric := false
	for tag, n := range counts {
		total += n
		if !tag.IsNumeric() {
			nonNumeric = true
		}
	}
	if total == 0 {
		return []karabo.Sample{}, nil
	}

	valueRegex := fmt.Sprintf("^%s-.*|_tid", key)
	switch {
	case total <= uint64(maxCount):
		rs, err := s.store.FieldValues(ctx, s.db, deviceID, valueRegex, t0, t1)
		if errors.Is(err, influx.ErrNoData) {
			return []karabo.Sample{}, nil
		}
		if err != nil {
			return nil, err
		}
		return s.rowsToSamples(rs, true, false)

	case nonNumeric:
		// Sampled rows are sparse: one family per row. Over-request by
		// the family count so the per-family yield still reaches the cap.
		rs, err := s.store.FieldValuesSampled(ctx, s.db, deviceID, valueRegex, t0, t1, maxCount*len(counts))
		if errors.Is(err, influx.ErrNoData) {
			return []karabo.Sample{}, nil
		}
		if err != nil {
			return nil, err
		}
		samples, err := s.rowsToSamples(rs, true, false)
		if err != nil {
			return nil, err
		}
		return thinUniform(samples, maxCount, dropSeed(deviceID, t0, t1, maxCount)), nil

	default:
		interval := (t1 - t0) / uint64(maxCount)
		if interval == 0 {
			interval = 1
		}
		rs, err := s.store.FieldsMean(ctx, s.db, deviceID, countRegex, t0, t1, interval)
		if errors.Is(err, influx.ErrNoData) {
			return []karabo.Sample{}, nil
		}
		if err != nil {
			return nil, err
		}
		return s.rowsToSamples(rs, false, true)
	}
}

// rowsToSamples converts store rows into samples. Each row carries one
// populated family column; rows with none (pure train-id rows from
// sampled queries, empty mean buckets) are skipped.
//
// authenticTid: read the _tid column; aggregated rows always get tid 0.
// aggregated: values are bucket means, parsed as doubles regardless of
// the family's declared type since a mean of integers is fractional.
func (s *Service) rowsToSamples(rs *influx.ResultSet, authenticTid, aggregated bool) ([]karabo.Sample, error) {
	tidCol := rs.ColumnIndex("_tid")
	timeCol := rs.ColumnIndex("time")

	samples := make([]karabo.Sample, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		us, ok := rs.TimeAt(row)
		if !ok {
			continue
		}

		var value any
		found := false
		for col, v := range row {
			if col == timeCol || col == tidCol || v == nil {
				continue
			}
			_, tag, ok := karabo.SplitField(rs.Columns[col])
			if !ok {
				continue
			}
			parsed, err := parseCell(tag, v, aggregated)
			if err != nil {
				s.log.Warn("dropping unparseable point",
					"column", rs.Columns[col], "time", us, "err", err)
				continue
			}
			value = parsed
			found = true
			break
		}
		if !found {
			continue
		}

		ts := karabo.FromMicros(us)
		if authenticTid && tidCol >= 0 && tidCol < len(row) && row[tidCol] != nil {
			if tid, ok := influx.AsUint(row[tidCol]); ok {
				ts.Tid = tid
			}
		}
		samples = append(samples, karabo.Sample{Value: value, Time: ts})
	}
	return samples, nil
}

// parseCell converts one store cell into the family's native type.
func parseCell(tag karabo.Type, v any, aggregated bool) (any, error) {
	if aggregated {
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: mean cell %T", karabo.ErrBadValue, v)
		}
		return n.Float64()
	}
	switch cell := v.(type) {
	case bool:
		if tag == karabo.Bool {
			return cell, nil
		}
		return nil, fmt.Errorf("%w: bool cell for %s", karabo.ErrBadValue, tag)
	case json.Number:
		return karabo.Parse(tag, cell.String())
	case string:
		if tag == karabo.String {
			return karabo.UnescapeLogged(cell), nil
		}
		return karabo.Parse(tag, cell)
	}
	return nil, fmt.Errorf("%w: cell %T for %s", karabo.ErrBadValue, v, tag)
}

// dropSeed derives the deterministic seed for surplus-row thinning from
// the request identity, so a retried request drops the same rows.
func dropSeed(deviceID string, t0, t1 uint64, maxCount int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%d|%d", deviceID, t0, t1, maxCount)
	return int64(h.Sum64())
}

// thinUniform drops rows uniformly at random until at most maxCount
// remain, preserving time order.
func thinUniform(samples []karabo.Sample, maxCount int, seed int64) []karabo.Sample {
	if len(samples) <= maxCount {
		return samples
	}
	rng := rand.New(rand.NewSource(seed))
	keep := rng.Perm(len(samples))[:maxCount]
	sort.Ints(keep)
	out := make([]karabo.Sample, maxCount)
	for i, idx := range keep {
		out[i] = samples[idx]
	}
	return out
}
