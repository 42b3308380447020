// Package reader answers historic-data questions about logged devices.
//
// It translates two semantic operations into the store's query
// vocabulary:
//
//   - property history: "give me property P of device D between t0 and
//     t1, at most N samples", choosing between raw retrieval, uniform
//     sampling and bucket averaging depending on how much data exists
//     and whether the store can average the involved types;
//   - configuration from past: "give me the full configuration of
//     device D as of t", reconstructed leaf by leaf from the schema
//     that was in force at t.
//
// # Strategy selection
//
// A property's points live in type-tagged field families. The reader
// first counts points per family in the window. If the total fits the
// caller's cap the raw points are fetched. If any present family is
// non-numeric (string, bool, vector, hash) the store cannot average, so
// the reader asks for a uniform sample, over-requesting by the number
// of families because sampled rows are sparse, then thins the surplus
// deterministically. Otherwise it asks for bucket means; averaged
// buckets carry no authentic train id.
//
// # Error Handling
//
// Missing series (influx.ErrNoData) always mean an empty result, never
// an error. A device with no recorded schema at the timepoint fails
// with ErrNoSchema. Transport and query faults pass through untouched.
package reader
