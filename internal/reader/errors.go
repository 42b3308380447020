package reader

import "errors"

// Sentinel errors for historic-data operations.
var (
	// ErrNoSchema indicates a configuration-from-past request for a
	// device with no SCHEMA event at or before the timepoint.
	ErrNoSchema = errors.New("reader: no schema at timepoint")

	// ErrBadRequest indicates unparseable request parameters.
	ErrBadRequest = errors.New("reader: bad request")
)
