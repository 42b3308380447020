package influx

import "errors"

// Sentinel errors for time-series store operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, influx.ErrNoData) {
//	    // Treat as an empty result
//	}
var (
	// ErrNotConnected indicates Connect has not succeeded yet.
	ErrNotConnected = errors.New("influx: not connected")

	// ErrTransport indicates a network-level failure reaching the store.
	ErrTransport = errors.New("influx: transport failure")

	// ErrQueryFailed indicates the store rejected a well-formed request
	// with an explicit error body.
	ErrQueryFailed = errors.New("influx: query failed")

	// ErrNoData indicates the queried series or measurement does not exist.
	ErrNoData = errors.New("influx: no data")
)
