package karabo

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Attributes is per-node metadata, e.g. the sec/frac/tid stamp attached
// to each entry of a reconstructed configuration.
type Attributes map[string]any

// Node is one named entry of a Hash: a value (scalar, vector or nested
// *Hash) plus its attributes.
type Node struct {
	Key   string
	Value any
	Attrs Attributes
}

// Hash is an insertion-ordered tree of named, attribute-carrying values.
// Keys are addressed by dotted path; intermediate nodes are nested
// Hashes created on demand.
//
// Hash is not safe for concurrent mutation.
type Hash struct {
	nodes []*Node
	index map[string]int
}

// NewHash returns an empty Hash.
func NewHash() *Hash {
	return &Hash{index: make(map[string]int)}
}

// Len returns the number of direct children.
func (h *Hash) Len() int { return len(h.nodes) }

// Keys returns the direct child keys in insertion order.
func (h *Hash) Keys() []string {
	keys := make([]string, len(h.nodes))
	for i, n := range h.nodes {
		keys[i] = n.Key
	}
	return keys
}

// Set stores a value at the dotted path, creating intermediate Hashes as
// needed, and returns the leaf node.
func (h *Hash) Set(path string, v any) *Node {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		return h.setDirect(head, v)
	}
	child, ok := h.getDirect(head)
	sub, isHash := child.(*Hash)
	if !ok || !isHash {
		sub = NewHash()
		h.setDirect(head, sub)
	}
	return sub.Set(rest, v)
}

func (h *Hash) setDirect(key string, v any) *Node {
	if i, ok := h.index[key]; ok {
		h.nodes[i].Value = v
		return h.nodes[i]
	}
	n := &Node{Key: key, Value: v, Attrs: Attributes{}}
	h.index[key] = len(h.nodes)
	h.nodes = append(h.nodes, n)
	return n
}

func (h *Hash) getDirect(key string) (any, bool) {
	i, ok := h.index[key]
	if !ok {
		return nil, false
	}
	return h.nodes[i].Value, true
}

// Get returns the value at the dotted path.
func (h *Hash) Get(path string) (any, bool) {
	n, ok := h.node(path)
	if !ok {
		return nil, false
	}
	return n.Value, true
}

// GetHash returns the nested Hash at the dotted path.
func (h *Hash) GetHash(path string) (*Hash, bool) {
	v, ok := h.Get(path)
	if !ok {
		return nil, false
	}
	sub, ok := v.(*Hash)
	return sub, ok
}

// Has reports whether the dotted path exists.
func (h *Hash) Has(path string) bool {
	_, ok := h.node(path)
	return ok
}

func (h *Hash) node(path string) (*Node, bool) {
	head, rest, nested := strings.Cut(path, ".")
	i, ok := h.index[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return h.nodes[i], true
	}
	sub, isHash := h.nodes[i].Value.(*Hash)
	if !isHash {
		return nil, false
	}
	return sub.node(rest)
}

// SetAttr attaches an attribute to the node at the dotted path. The node
// must exist.
func (h *Hash) SetAttr(path, name string, v any) bool {
	n, ok := h.node(path)
	if !ok {
		return false
	}
	n.Attrs[name] = v
	return true
}

// Attr reads an attribute of the node at the dotted path.
func (h *Hash) Attr(path, name string) (any, bool) {
	n, ok := h.node(path)
	if !ok {
		return nil, false
	}
	v, ok := n.Attrs[name]
	return v, ok
}

// Walk visits every leaf node depth-first in insertion order, passing
// the full dotted path. Nested Hashes are descended, not visited.
func (h *Hash) Walk(fn func(path string, n *Node)) {
	h.walk("", fn)
}

func (h *Hash) walk(prefix string, fn func(path string, n *Node)) {
	for _, n := range h.nodes {
		path := n.Key
		if prefix != "" {
			path = prefix + "." + n.Key
		}
		if sub, ok := n.Value.(*Hash); ok {
			sub.walk(path, fn)
			continue
		}
		fn(path, n)
	}
}

// MarshalJSON encodes the Hash as an ordered JSON object. Each child
// becomes {"v": value, "a": attributes}; nested Hashes recurse under "v".
// Key order is preserved in the emitted document.
func (h *Hash) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, n := range h.nodes {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(n.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(`:{"v":`)
		val, err := json.Marshal(n.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
		if len(n.Attrs) > 0 {
			attrs, err := json.Marshal(map[string]any(n.Attrs))
			if err != nil {
				return nil, err
			}
			buf.WriteString(`,"a":`)
			buf.Write(attrs)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
// Numeric scalars come back as float64 per encoding/json; callers that
// need exact types re-parse with the schema's type tags.
func (h *Hash) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return ErrBadValue
	}
	h.nodes = nil
	h.index = make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var entry struct {
			V json.RawMessage `json:"v"`
			A Attributes      `json:"a"`
		}
		if err := dec.Decode(&entry); err != nil {
			return err
		}
		var val any
		if isJSONObject(entry.V) {
			sub := NewHash()
			if err := sub.UnmarshalJSON(entry.V); err != nil {
				return err
			}
			val = sub
		} else if err := json.Unmarshal(entry.V, &val); err != nil {
			return err
		}
		n := h.setDirect(key, val)
		if entry.A != nil {
			n.Attrs = entry.A
		}
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}
