package karabo

import "errors"

// Sentinel errors for value and schema handling.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(err, karabo.ErrUnknownType) {
//	    // Skip the unsupported field family
//	}
var (
	// ErrUnknownType indicates a type tag that is not part of the value model.
	ErrUnknownType = errors.New("karabo: unknown type tag")

	// ErrBadValue indicates a stringified value that does not parse as its declared type.
	ErrBadValue = errors.New("karabo: malformed value")

	// ErrBadTimestamp indicates a time string that is not ISO 8601.
	ErrBadTimestamp = errors.New("karabo: malformed timestamp")

	// ErrBadSchema indicates a schema blob that does not decode.
	ErrBadSchema = errors.New("karabo: malformed schema")
)
