package karabo

import (
	"fmt"
	"strconv"
	"strings"
)

// Type is a Karabo value-type tag. The tag doubles as the field-family
// suffix in the time-series store: property "targetSpeed" of type Double
// is logged into the field "targetSpeed-DOUBLE".
type Type string

// Scalar type tags.
const (
	Bool   Type = "BOOL"
	Int8   Type = "INT8"
	Int16  Type = "INT16"
	Int32  Type = "INT32"
	Int64  Type = "INT64"
	UInt8  Type = "UINT8"
	UInt16 Type = "UINT16"
	UInt32 Type = "UINT32"
	UInt64 Type = "UINT64"
	Float  Type = "FLOAT"
	Double Type = "DOUBLE"
	String Type = "STRING"
	HashT  Type = "HASH"
)

// Vector type tags.
const (
	VectorBool   Type = "VECTOR_BOOL"
	VectorInt8   Type = "VECTOR_INT8"
	VectorInt16  Type = "VECTOR_INT16"
	VectorInt32  Type = "VECTOR_INT32"
	VectorInt64  Type = "VECTOR_INT64"
	VectorUInt8  Type = "VECTOR_UINT8"
	VectorUInt16 Type = "VECTOR_UINT16"
	VectorUInt32 Type = "VECTOR_UINT32"
	VectorUInt64 Type = "VECTOR_UINT64"
	VectorFloat  Type = "VECTOR_FLOAT"
	VectorDouble Type = "VECTOR_DOUBLE"
	VectorString Type = "VECTOR_STRING"
)

var validTypes = map[Type]bool{
	Bool: true, Int8: true, Int16: true, Int32: true, Int64: true,
	UInt8: true, UInt16: true, UInt32: true, UInt64: true,
	Float: true, Double: true, String: true, HashT: true,
	VectorBool: true, VectorInt8: true, VectorInt16: true, VectorInt32: true,
	VectorInt64: true, VectorUInt8: true, VectorUInt16: true, VectorUInt32: true,
	VectorUInt64: true, VectorFloat: true, VectorDouble: true, VectorString: true,
}

// ParseTypeTag validates a type-tag string as found in a field family suffix.
func ParseTypeTag(s string) (Type, error) {
	t := Type(s)
	if !validTypes[t] {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}

// IsNumeric reports whether the store can average values of this type.
// Only plain integer and floating scalars qualify; bool, string, hash
// and all vectors must be sampled instead of averaged.
func (t Type) IsNumeric() bool {
	switch t {
	case Int8, Int16, Int32, Int64, UInt8, UInt16, UInt32, UInt64, Float, Double:
		return true
	}
	return false
}

// IsVector reports whether the tag names a vector family.
func (t Type) IsVector() bool {
	return strings.HasPrefix(string(t), "VECTOR_")
}

// Elem returns the element type of a vector tag. Calling Elem on a
// scalar tag returns the tag unchanged.
func (t Type) Elem() Type {
	return Type(strings.TrimPrefix(string(t), "VECTOR_"))
}

// FieldName builds the store field name for a property key and its type.
func FieldName(key string, t Type) string {
	return key + "-" + string(t)
}

// SplitField splits a store field name "<key>-<TYPE>" into its parts.
// Property keys may themselves contain dashes, so the split is on the
// last dash whose suffix is a known type tag.
func SplitField(field string) (key string, t Type, ok bool) {
	for i := len(field) - 1; i > 0; i-- {
		if field[i] != '-' {
			continue
		}
		if tag := Type(field[i+1:]); validTypes[tag] {
			return field[:i], tag, true
		}
	}
	return "", "", false
}

// Parse converts the stringified store form of a value into its native
// Go representation. Vectors are comma-separated element lists; an empty
// string parses to an empty vector.
func Parse(t Type, s string) (any, error) {
	switch t {
	case Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", ErrBadValue, t, s)
		}
		return v, nil
	case Int8, Int16, Int32, Int64:
		v, err := strconv.ParseInt(s, 10, intBits(t))
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", ErrBadValue, t, s)
		}
		switch t {
		case Int8:
			return int8(v), nil
		case Int16:
			return int16(v), nil
		case Int32:
			return int32(v), nil
		default:
			return v, nil
		}
	case UInt8, UInt16, UInt32, UInt64:
		v, err := strconv.ParseUint(s, 10, intBits(t))
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", ErrBadValue, t, s)
		}
		switch t {
		case UInt8:
			return uint8(v), nil
		case UInt16:
			return uint16(v), nil
		case UInt32:
			return uint32(v), nil
		default:
			return v, nil
		}
	case Float:
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", ErrBadValue, t, s)
		}
		return float32(v), nil
	case Double:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %q", ErrBadValue, t, s)
		}
		return v, nil
	case String, HashT:
		return s, nil
	}
	if t.IsVector() {
		return parseVector(t, s)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
}

// Format is the inverse of Parse: it produces the stringified store form
// of a native value. Parse and Format round-trip exactly for every
// supported type.
func Format(t Type, v any) (string, error) {
	switch t {
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return "", fmt.Errorf("%w: %s from %T", ErrBadValue, t, v)
		}
		return strconv.FormatBool(b), nil
	case Int8, Int16, Int32, Int64:
		n, ok := toInt64(v)
		if !ok {
			return "", fmt.Errorf("%w: %s from %T", ErrBadValue, t, v)
		}
		return strconv.FormatInt(n, 10), nil
	case UInt8, UInt16, UInt32, UInt64:
		n, ok := toUint64(v)
		if !ok {
			return "", fmt.Errorf("%w: %s from %T", ErrBadValue, t, v)
		}
		return strconv.FormatUint(n, 10), nil
	case Float:
		f, ok := v.(float32)
		if !ok {
			return "", fmt.Errorf("%w: %s from %T", ErrBadValue, t, v)
		}
		return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
	case Double:
		f, ok := v.(float64)
		if !ok {
			return "", fmt.Errorf("%w: %s from %T", ErrBadValue, t, v)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case String, HashT:
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s from %T", ErrBadValue, t, v)
		}
		return s, nil
	}
	if t.IsVector() {
		return formatVector(t, v)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, string(t))
}

func intBits(t Type) int {
	switch t {
	case Int8, UInt8:
		return 8
	case Int16, UInt16:
		return 16
	case Int32, UInt32:
		return 32
	default:
		return 64
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	}
	return 0, false
}

func parseVector(t Type, s string) (any, error) {
	elem := t.Elem()
	var parts []string
	if s != "" {
		parts = strings.Split(s, ",")
	}
	switch elem {
	case Bool:
		out := make([]bool, len(parts))
		for i, p := range parts {
			v, err := Parse(elem, p)
			if err != nil {
				return nil, err
			}
			out[i] = v.(bool)
		}
		return out, nil
	case Int8:
		return parseVectorAs[int8](elem, parts)
	case Int16:
		return parseVectorAs[int16](elem, parts)
	case Int32:
		return parseVectorAs[int32](elem, parts)
	case Int64:
		return parseVectorAs[int64](elem, parts)
	case UInt8:
		return parseVectorAs[uint8](elem, parts)
	case UInt16:
		return parseVectorAs[uint16](elem, parts)
	case UInt32:
		return parseVectorAs[uint32](elem, parts)
	case UInt64:
		return parseVectorAs[uint64](elem, parts)
	case Float:
		return parseVectorAs[float32](elem, parts)
	case Double:
		return parseVectorAs[float64](elem, parts)
	case String:
		out := make([]string, len(parts))
		copy(out, parts)
		return out, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
}

func parseVectorAs[T any](elem Type, parts []string) ([]T, error) {
	out := make([]T, len(parts))
	for i, p := range parts {
		v, err := Parse(elem, p)
		if err != nil {
			return nil, err
		}
		out[i] = v.(T)
	}
	return out, nil
}

func formatVector(t Type, v any) (string, error) {
	elem := t.Elem()
	var parts []string
	appendEach := func(n int, at func(int) any) error {
		parts = make([]string, n)
		for i := 0; i < n; i++ {
			s, err := Format(elem, at(i))
			if err != nil {
				return err
			}
			parts[i] = s
		}
		return nil
	}
	var err error
	switch vs := v.(type) {
	case []bool:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []int8:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []int16:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []int32:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []int64:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []uint8:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []uint16:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []uint32:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []uint64:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []float32:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []float64:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	case []string:
		err = appendEach(len(vs), func(i int) any { return vs[i] })
	default:
		return "", fmt.Errorf("%w: %s from %T", ErrBadValue, t, v)
	}
	if err != nil {
		return "", err
	}
	return strings.Join(parts, ","), nil
}
