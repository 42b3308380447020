package influx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerrad567/datalog-core/internal/karabo"
)

// ResultSet is one query's rows with their column names, in server order.
// Values are string, bool, json.Number or nil; time columns are integer
// microseconds preserved exactly as json.Number.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// influxResponse mirrors the store's /query JSON envelope.
type influxResponse struct {
	Results []struct {
		Series []struct {
			Name    string   `json:"name"`
			Columns []string `json:"columns"`
			Values  [][]any  `json:"values"`
		} `json:"series"`
		Error string `json:"error"`
	} `json:"results"`
	Error string `json:"error"`
}

// Query executes one InfluxQL statement with the microsecond epoch and
// returns the parsed first result. Column-name prefixes and quoting are
// stripped per the package rules.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - db: Target database; empty for databaseless statements
//   - expr: InfluxQL statement
//
// Returns:
//   - *ResultSet: Parsed rows and columns
//   - error: ErrTransport, ErrQueryFailed or ErrNoData
func (c *Client) Query(ctx context.Context, db, expr string) (*ResultSet, error) {
	return c.exec(ctx, db, expr)
}

func (c *Client) exec(ctx context.Context, db, expr string) (*ResultSet, error) {
	if c == nil || !c.IsConnected() {
		return nil, ErrNotConnected
	}

	params := map[string]string{
		"q":     expr,
		"epoch": "u",
	}
	if db != "" {
		params["db"] = db
	}
	if c.username != "" {
		params["u"] = c.username
		params["p"] = c.password
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		Post("/query")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrQueryFailed, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	return parseResponse(resp.Body())
}

// parseResponse decodes the /query envelope into a ResultSet.
func parseResponse(body []byte) (*ResultSet, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var envelope influxResponse
	if err := dec.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrQueryFailed, err)
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, envelope.Error)
	}
	if len(envelope.Results) == 0 {
		return nil, ErrNoData
	}
	result := envelope.Results[0]
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrQueryFailed, result.Error)
	}
	if len(result.Series) == 0 {
		return nil, ErrNoData
	}

	series := result.Series[0]
	rs := &ResultSet{
		Columns: make([]string, len(series.Columns)),
		Rows:    series.Values,
	}
	for i, col := range series.Columns {
		rs.Columns[i] = cleanColumn(col)
	}
	for _, row := range rs.Rows {
		for j, v := range row {
			if s, ok := v.(string); ok {
				row[j] = stripQuotes(s)
			}
		}
	}
	return rs, nil
}

// functionPrefixes are the aggregation prefixes the server prepends to
// result column names.
var functionPrefixes = []string{"count_", "sample_", "mean_", "last_", "min_", "max_", "first_"}

// cleanColumn strips the aggregation-function prefix and surrounding
// double quotes from a result column name.
func cleanColumn(col string) string {
	for _, prefix := range functionPrefixes {
		if strings.HasPrefix(col, prefix) {
			col = col[len(prefix):]
			break
		}
	}
	return stripQuotes(col)
}

// stripQuotes removes exactly one surrounding double-quote pair.
func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// ColumnIndex returns the position of a named column, or -1.
func (rs *ResultSet) ColumnIndex(name string) int {
	for i, col := range rs.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// TimeAt reads the integer-microsecond time column of a row.
func (rs *ResultSet) TimeAt(row []any) (uint64, bool) {
	i := rs.ColumnIndex("time")
	if i < 0 || i >= len(row) {
		return 0, false
	}
	return AsUint(row[i])
}

// AsUint converts a parsed JSON value to uint64 when it is an integer.
func AsUint(v any) (uint64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return 0, false
	}
	return uint64(i), true
}

// FieldCount counts logged points per type-tagged field family of one
// measurement within [t0, t1) microseconds.
//
// Returns:
//   - map from type tag to point count
//   - error: ErrNoData when the measurement has no matching series
func (c *Client) FieldCount(ctx context.Context, db, measurement, fieldRegex string, t0, t1 uint64) (map[karabo.Type]uint64, error) {
	expr := fmt.Sprintf("SELECT COUNT(/%s/) FROM %q WHERE time >= %du AND time < %du",
		fieldRegex, measurement, t0, t1)
	rs, err := c.exec(ctx, db, expr)
	if err != nil {
		return nil, err
	}

	counts := make(map[karabo.Type]uint64)
	if len(rs.Rows) == 0 {
		return counts, nil
	}
	row := rs.Rows[0]
	for i, col := range rs.Columns {
		if col == "time" || i >= len(row) {
			continue
		}
		_, tag, ok := karabo.SplitField(col)
		if !ok {
			continue
		}
		if n, ok := AsUint(row[i]); ok && n > 0 {
			counts[tag] += n
		}
	}
	return counts, nil
}

// FieldValues returns the raw points of the matching field families
// within [t0, t1) microseconds, unfiltered.
func (c *Client) FieldValues(ctx context.Context, db, measurement, fieldRegex string, t0, t1 uint64) (*ResultSet, error) {
	expr := fmt.Sprintf("SELECT /%s/ FROM %q WHERE time >= %du AND time < %du",
		fieldRegex, measurement, t0, t1)
	return c.exec(ctx, db, expr)
}

// FieldValuesSampled returns approximately n points uniformly sampled
// from the matching field families within [t0, t1). Rows are sparse:
// each carries one family's sample, the other columns are nil.
func (c *Client) FieldValuesSampled(ctx context.Context, db, measurement, fieldRegex string, t0, t1 uint64, n int) (*ResultSet, error) {
	expr := fmt.Sprintf("SELECT SAMPLE(/%s/, %d) FROM %q WHERE time >= %du AND time < %du",
		fieldRegex, n, measurement, t0, t1)
	return c.exec(ctx, db, expr)
}

// FieldsMean returns one row per interval-wide bucket with the mean of
// the points inside. Empty buckets keep their time column and carry nil
// values.
func (c *Client) FieldsMean(ctx context.Context, db, measurement, fieldRegex string, t0, t1, intervalUs uint64) (*ResultSet, error) {
	expr := fmt.Sprintf("SELECT MEAN(/%s/) FROM %q WHERE time >= %du AND time < %du GROUP BY time(%du)",
		fieldRegex, measurement, t0, t1, intervalUs)
	return c.exec(ctx, db, expr)
}

// LastField returns the most recent value of one field at or before the
// given microsecond timepoint. The optional where clause is ANDed in,
// e.g. `"type" = 'LOG+'`.
func (c *Client) LastField(ctx context.Context, db, measurement, field, where string, beforeUs uint64) (*ResultSet, error) {
	var cond string
	if where != "" {
		cond = where + " AND "
	}
	expr := fmt.Sprintf("SELECT LAST(%q) FROM %q WHERE %stime <= %du",
		field, measurement, cond, beforeUs)
	return c.exec(ctx, db, expr)
}
