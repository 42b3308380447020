// Package influx speaks the InfluxQL 1.x HTTP dialect of the time-series
// store that backs the datalog services.
//
// It covers database lifecycle (ping, SHOW DATABASES, CREATE DATABASE,
// SHOW MEASUREMENTS), raw query execution with microsecond epochs, and
// the aggregation helpers the historic-data reader builds on: COUNT,
// SAMPLE and MEAN over type-tagged field families, and LAST-before-a-
// timepoint lookups.
//
// # Purpose
//
// Every logged device occupies up to three measurements: "<id>" for
// property values, "<id>__EVENTS" for lifecycle rows and "<id>__SCHEMAS"
// for schema blobs. Field names encode the Karabo value type as a suffix
// ("targetSpeed-FLOAT"), which is how heterogeneous properties coexist
// in one measurement. This package returns raw rows and columns; the
// reader applies type-aware post-processing.
//
// # Parsing
//
// The server prefixes result columns with the aggregation function
// ("mean_", "sample_", ...) and wraps field names in double quotes; both
// are stripped before rows are handed to callers. String values carry
// one embedded quote pair, also stripped here. Time columns are integer
// microseconds and survive parsing exactly (json.Number, not float64).
//
// # Error Handling
//
// Network failures surface as ErrTransport and are retried by the next
// caller-initiated operation; there is no internal retry loop. A server
// error body maps to ErrQueryFailed with the server's text attached. A
// well-formed query whose target series does not exist maps to ErrNoData.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package influx
