// Package karabo implements the value model shared by the datalog services.
//
// It provides the type-tagged value codec used by the time-series store
// (field families are named "<key>-<TYPE>"), high-resolution timestamps
// with lossless microsecond conversion, the ordered attribute-carrying
// Hash container used for device configurations, and device schemas with
// content-addressed digests.
//
// # Purpose
//
// Every service in this repository moves property values between three
// representations: the stringified form stored in the time-series
// database, the native Go form used in process, and the JSON form sent
// over the broker. This package owns all three conversions so that the
// round trip is exact for every supported type.
//
// # Thread Safety
//
// Values, Timestamps, Samples and Schemas are immutable after
// construction and safe to share. Hash is not safe for concurrent
// mutation; each Hash is owned by a single goroutine.
//
// # Error Handling
//
// Parse failures return wrapped sentinel errors (ErrBadValue,
// ErrUnknownType) checkable with errors.Is.
package karabo
