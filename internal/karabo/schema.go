package karabo

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"sort"
)

// Leaf is one logged property of a device schema: its dotted path, value
// type and optional display hint and bounds.
type Leaf struct {
	Path        string
	Type        Type
	DisplayType string
	MinInc      *float64
	MaxInc      *float64
	WarnLow     *float64
	WarnHigh    *float64
	AlarmLow    *float64
	AlarmHigh   *float64
}

// Schema describes the logged properties of one device class. Leaves are
// kept in declaration order; lookups by path are O(1).
type Schema struct {
	Name   string
	leaves []Leaf
	byPath map[string]int
}

// NewSchema builds a schema from its leaves. Later duplicates of a path
// replace earlier ones.
func NewSchema(name string, leaves []Leaf) *Schema {
	s := &Schema{Name: name, byPath: make(map[string]int, len(leaves))}
	for _, l := range leaves {
		if i, ok := s.byPath[l.Path]; ok {
			s.leaves[i] = l
			continue
		}
		s.byPath[l.Path] = len(s.leaves)
		s.leaves = append(s.leaves, l)
	}
	return s
}

// Leaves returns the schema's leaves in declaration order.
func (s *Schema) Leaves() []Leaf {
	out := make([]Leaf, len(s.leaves))
	copy(out, s.leaves)
	return out
}

// Leaf locates a property by its dotted path.
func (s *Schema) Leaf(path string) (Leaf, bool) {
	i, ok := s.byPath[path]
	if !ok {
		return Leaf{}, false
	}
	return s.leaves[i], true
}

// xmlSchema is the serialised shape. Leaves carry their path explicitly
// so nesting does not need to be reconstructed from element structure.
type xmlSchema struct {
	XMLName xml.Name  `xml:"schema"`
	Name    string    `xml:"name,attr"`
	Leaves  []xmlLeaf `xml:"leaf"`
}

type xmlLeaf struct {
	Path        string   `xml:"path,attr"`
	Type        string   `xml:"type,attr"`
	DisplayType string   `xml:"displayType,attr,omitempty"`
	MinInc      *float64 `xml:"minInc,attr,omitempty"`
	MaxInc      *float64 `xml:"maxInc,attr,omitempty"`
	WarnLow     *float64 `xml:"warnLow,attr,omitempty"`
	WarnHigh    *float64 `xml:"warnHigh,attr,omitempty"`
	AlarmLow    *float64 `xml:"alarmLow,attr,omitempty"`
	AlarmHigh   *float64 `xml:"alarmHigh,attr,omitempty"`
}

// MarshalXML gives the canonical byte form the digest is computed over.
func (s *Schema) MarshalXML() ([]byte, error) {
	doc := xmlSchema{Name: s.Name, Leaves: make([]xmlLeaf, len(s.leaves))}
	for i, l := range s.leaves {
		doc.Leaves[i] = xmlLeaf{
			Path:        l.Path,
			Type:        string(l.Type),
			DisplayType: l.DisplayType,
			MinInc:      l.MinInc,
			MaxInc:      l.MaxInc,
			WarnLow:     l.WarnLow,
			WarnHigh:    l.WarnHigh,
			AlarmLow:    l.AlarmLow,
			AlarmHigh:   l.AlarmHigh,
		}
	}
	return xml.Marshal(doc)
}

// Digest returns the content-addressed identifier of the schema: the
// hex SHA-1 of its canonical serialisation. The digest is the lookup key
// in the schemas measurement.
func (s *Schema) Digest() (string, error) {
	raw, err := s.MarshalXML()
	if err != nil {
		return "", fmt.Errorf("karabo: schema digest: %w", err)
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:]), nil
}

// EncodeBlob produces the base64 form stored in the schemas measurement.
func (s *Schema) EncodeBlob() (string, error) {
	raw, err := s.MarshalXML()
	if err != nil {
		return "", fmt.Errorf("karabo: schema blob: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSchemaBlob reverses EncodeBlob.
func DecodeSchemaBlob(blob string) (*Schema, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrBadSchema, err)
	}
	var doc xmlSchema
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSchema, err)
	}
	leaves := make([]Leaf, len(doc.Leaves))
	for i, l := range doc.Leaves {
		t, err := ParseTypeTag(l.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: leaf %q: %v", ErrBadSchema, l.Path, err)
		}
		leaves[i] = Leaf{
			Path:        l.Path,
			Type:        t,
			DisplayType: l.DisplayType,
			MinInc:      l.MinInc,
			MaxInc:      l.MaxInc,
			WarnLow:     l.WarnLow,
			WarnHigh:    l.WarnHigh,
			AlarmLow:    l.AlarmLow,
			AlarmHigh:   l.AlarmHigh,
		}
	}
	return NewSchema(doc.Name, leaves), nil
}

// SortedPaths returns all leaf paths in lexical order, useful for
// deterministic iteration in reports and tests.
func (s *Schema) SortedPaths() []string {
	paths := make([]string, len(s.leaves))
	for i, l := range s.leaves {
		paths[i] = l.Path
	}
	sort.Strings(paths)
	return paths
}
