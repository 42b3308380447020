package karabo

import (
	"errors"
	"testing"
)

func testSchema() *Schema {
	return NewSchema("Motor", []Leaf{
		{Path: "targetSpeed", Type: Double},
		{Path: "state", Type: String, DisplayType: "State"},
		{Path: "limits.soft", Type: Int32},
	})
}

func TestSchemaLeafLookup(t *testing.T) {
	s := testSchema()
	leaf, ok := s.Leaf("limits.soft")
	if !ok {
		t.Fatal("Leaf(limits.soft) not found")
	}
	if leaf.Type != Int32 {
		t.Errorf("Type = %s, want INT32", leaf.Type)
	}
	if _, ok := s.Leaf("absent"); ok {
		t.Error("Leaf(absent) = true")
	}
	if n := len(s.Leaves()); n != 3 {
		t.Errorf("len(Leaves()) = %d, want 3", n)
	}
}

func TestSchemaBlobRoundTrip(t *testing.T) {
	s := testSchema()
	blob, err := s.EncodeBlob()
	if err != nil {
		t.Fatalf("EncodeBlob() error = %v", err)
	}

	back, err := DecodeSchemaBlob(blob)
	if err != nil {
		t.Fatalf("DecodeSchemaBlob() error = %v", err)
	}
	if back.Name != "Motor" {
		t.Errorf("Name = %q, want Motor", back.Name)
	}
	if len(back.Leaves()) != 3 {
		t.Fatalf("len(Leaves()) = %d, want 3", len(back.Leaves()))
	}
	leaf, _ := back.Leaf("state")
	if leaf.DisplayType != "State" {
		t.Errorf("DisplayType = %q, want State", leaf.DisplayType)
	}
}

// TestSchemaDigestStable verifies the digest is content-addressed: equal
// content gives equal digests, different content different ones.
func TestSchemaDigestStable(t *testing.T) {
	a, err := testSchema().Digest()
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	b, _ := testSchema().Digest()
	if a != b {
		t.Errorf("digests differ for equal schemas: %s vs %s", a, b)
	}

	other, _ := NewSchema("Motor", []Leaf{{Path: "targetSpeed", Type: Float}}).Digest()
	if a == other {
		t.Error("digests equal for different schemas")
	}

	if len(a) != 40 {
		t.Errorf("digest length = %d, want 40 hex chars", len(a))
	}
}

func TestDecodeSchemaBlobRejectsJunk(t *testing.T) {
	if _, err := DecodeSchemaBlob("%%%not-base64%%%"); !errors.Is(err, ErrBadSchema) {
		t.Errorf("error = %v, want ErrBadSchema", err)
	}
	if _, err := DecodeSchemaBlob("bm90IHhtbA=="); !errors.Is(err, ErrBadSchema) {
		t.Errorf("error = %v, want ErrBadSchema", err)
	}
}
