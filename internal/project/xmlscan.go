package project

import (
	"encoding/xml"
	"strconv"
	"strings"
)

// ScanChildRefs scans a document for child references.
//
// A child reference is any element carrying a uuid attribute that sits
// inside an element named listTag, at any depth:
//
//	<subprojects>
//	    <project uuid="aa-bb" revision="2"/>
//	</subprojects>
//
// A missing or malformed revision attribute means "latest" (-1). Malformed
// XML yields the references found up to the parse error.
func ScanChildRefs(doc, listTag string) []ChildRef {
	var refs []ChildRef
	depth := 0 // nesting depth inside listTag elements

	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err != nil {
			return refs
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == listTag {
				depth++
				continue
			}
			if depth == 0 {
				continue
			}
			if ref, ok := childRefFromAttrs(el.Attr); ok {
				refs = append(refs, ref)
			}
		case xml.EndElement:
			if el.Name.Local == listTag && depth > 0 {
				depth--
			}
		}
	}
}

func childRefFromAttrs(attrs []xml.Attr) (ChildRef, bool) {
	ref := ChildRef{Revision: -1}
	found := false
	for _, attr := range attrs {
		switch attr.Name.Local {
		case "uuid":
			if attr.Value != "" {
				ref.UUID = attr.Value
				found = true
			}
		case "revision":
			if rev, err := strconv.Atoi(attr.Value); err == nil {
				ref.Revision = rev
			}
		}
	}
	return ref, found
}
