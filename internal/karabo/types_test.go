package karabo

import (
	"errors"
	"reflect"
	"testing"
)

// TestParseFormatRoundTrip verifies parse(serialise(v)) == v and
// serialise(parse(s)) == s across the supported types.
func TestParseFormatRoundTrip(t *testing.T) {
	cases := []struct {
		tag   Type
		str   string
		value any
	}{
		{Bool, "true", true},
		{Bool, "false", false},
		{Int8, "-12", int8(-12)},
		{Int16, "1234", int16(1234)},
		{Int32, "-70000", int32(-70000)},
		{Int64, "9007199254740993", int64(9007199254740993)},
		{UInt8, "255", uint8(255)},
		{UInt16, "65535", uint16(65535)},
		{UInt32, "4294967295", uint32(4294967295)},
		{UInt64, "18446744073709551615", uint64(18446744073709551615)},
		{Float, "3.5", float32(3.5)},
		{Double, "3.5", 3.5},
		{Double, "-0.25", -0.25},
		{String, "ON", "ON"},
		{VectorInt32, "1,2,3", []int32{1, 2, 3}},
		{VectorDouble, "0.5,1.5", []float64{0.5, 1.5}},
		{VectorString, "a,b", []string{"a", "b"}},
		{VectorBool, "true,false", []bool{true, false}},
	}

	for _, tc := range cases {
		got, err := Parse(tc.tag, tc.str)
		if err != nil {
			t.Fatalf("Parse(%s, %q) error = %v", tc.tag, tc.str, err)
		}
		if !reflect.DeepEqual(got, tc.value) {
			t.Errorf("Parse(%s, %q) = %#v, want %#v", tc.tag, tc.str, got, tc.value)
		}

		str, err := Format(tc.tag, tc.value)
		if err != nil {
			t.Fatalf("Format(%s, %#v) error = %v", tc.tag, tc.value, err)
		}
		if str != tc.str {
			t.Errorf("Format(%s, %#v) = %q, want %q", tc.tag, tc.value, str, tc.str)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse(Int32, "not-a-number"); !errors.Is(err, ErrBadValue) {
		t.Errorf("Parse(INT32) error = %v, want ErrBadValue", err)
	}
	if _, err := Parse(Type("FANCY"), "1"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Parse(FANCY) error = %v, want ErrUnknownType", err)
	}
}

func TestParseEmptyVector(t *testing.T) {
	got, err := Parse(VectorInt32, "")
	if err != nil {
		t.Fatalf("Parse(VECTOR_INT32, \"\") error = %v", err)
	}
	if vs := got.([]int32); len(vs) != 0 {
		t.Errorf("len = %d, want 0", len(vs))
	}
}

func TestIsNumeric(t *testing.T) {
	numeric := []Type{Int8, Int16, Int32, Int64, UInt8, UInt16, UInt32, UInt64, Float, Double}
	for _, tag := range numeric {
		if !tag.IsNumeric() {
			t.Errorf("%s.IsNumeric() = false, want true", tag)
		}
	}
	for _, tag := range []Type{Bool, String, HashT, VectorDouble, VectorString} {
		if tag.IsNumeric() {
			t.Errorf("%s.IsNumeric() = true, want false", tag)
		}
	}
}

func TestSplitField(t *testing.T) {
	cases := []struct {
		field string
		key   string
		tag   Type
		ok    bool
	}{
		{"targetSpeed-FLOAT", "targetSpeed", Float, true},
		{"my-dashed-key-VECTOR_INT32", "my-dashed-key", VectorInt32, true},
		{"state-STRING", "state", String, true},
		{"_tid", "", "", false},
		{"plain", "", "", false},
	}
	for _, tc := range cases {
		key, tag, ok := SplitField(tc.field)
		if ok != tc.ok || key != tc.key || tag != tc.tag {
			t.Errorf("SplitField(%q) = (%q, %s, %v), want (%q, %s, %v)",
				tc.field, key, tag, ok, tc.key, tc.tag, tc.ok)
		}
	}
}

func TestEscapeLoggedRoundTrip(t *testing.T) {
	original := "line one\nwith \"quotes\" and \\backslash"
	if got := UnescapeLogged(EscapeLogged(original)); got != original {
		t.Errorf("UnescapeLogged(EscapeLogged()) = %q, want %q", got, original)
	}
}
