// Package document implements the generic tree model for metadata
// documents: ordered maps, identity-keyed sequences, and scalar leaves.
//
// Documents are arenas of nodes addressed by generated indices and built
// strictly top-down during Normalize, so a node can never reference an
// ancestor and reference cycles are impossible by construction. The
// store never interprets document content beyond these generic tree
// operations.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nholden/verso/internal/domain"
)

// Kind identifies the shape of a node.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindMap
	KindSequence
)

// String returns the lower-case kind name used in diffs and errors.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// IsScalar reports whether the kind is a leaf value.
func (k Kind) IsScalar() bool {
	return k == KindNull || k == KindBool || k == KindNumber || k == KindString
}

// NodeID addresses a node within a Document arena.
type NodeID int32

// node is one arena entry. Maps keep Keys sorted; sequences keep Keys in
// input element order, where each key is the element's identity value.
type node struct {
	Kind     Kind
	Scalar   any // string, float64, bool, or nil
	Keys     []string
	Children map[string]NodeID
}

// Document is an immutable tree snapshot. The zero value is not usable;
// construct documents with Normalize or Decode.
type Document struct {
	nodes []node
	root  NodeID
}

// Root returns the root node id.
func (d *Document) Root() NodeID { return d.root }

// KindOf returns the kind of a node.
func (d *Document) KindOf(id NodeID) Kind { return d.nodes[id].Kind }

// ScalarOf returns the scalar value of a leaf node.
func (d *Document) ScalarOf(id NodeID) any { return d.nodes[id].Scalar }

// KeysOf returns the ordered child keys of a map or sequence node.
func (d *Document) KeysOf(id NodeID) []string { return d.nodes[id].Keys }

// Child returns the child node for a key, if present.
func (d *Document) Child(id NodeID, key string) (NodeID, bool) {
	c, ok := d.nodes[id].Children[key]
	return c, ok
}

// Normalize validates raw data (the shape produced by encoding/json:
// map[string]any, []any, string, float64, bool, nil) and rebuilds it as
// a Document. Sequences must be arrays of maps whose elements each carry
// the identity field declared by the schema; duplicate identities fail
// validation. Map keys are normalized to sorted order so that Encode is
// deterministic.
func Normalize(raw any, schema *Schema) (*Document, error) {
	if schema == nil {
		schema = DefaultSchema()
	}
	d := &Document{}
	root, err := d.build(raw, "", schema)
	if err != nil {
		return nil, err
	}
	d.root = root
	return d, nil
}

// build appends the subtree for raw and returns its node id. name is the
// map key under which raw appears; it selects the identity field for
// sequences.
func (d *Document) build(raw any, name string, schema *Schema) (NodeID, error) {
	switch v := raw.(type) {
	case nil:
		return d.append(node{Kind: KindNull}), nil
	case bool:
		return d.append(node{Kind: KindBool, Scalar: v}), nil
	case string:
		return d.append(node{Kind: KindString, Scalar: v}), nil
	case float64:
		return d.append(node{Kind: KindNumber, Scalar: v}), nil
	case int:
		return d.append(node{Kind: KindNumber, Scalar: float64(v)}), nil
	case int64:
		return d.append(node{Kind: KindNumber, Scalar: float64(v)}), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, domain.Validationf("invalid number %q at %s", v.String(), name)
		}
		return d.append(node{Kind: KindNumber, Scalar: f}), nil
	case map[string]any:
		return d.buildMap(v, schema)
	case []any:
		return d.buildSequence(v, name, schema)
	default:
		return 0, domain.Validationf("unsupported value type %T at %s", raw, name)
	}
}

func (d *Document) buildMap(m map[string]any, schema *Schema) (NodeID, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Reserve the parent slot before the children so ids stay top-down.
	id := d.append(node{Kind: KindMap, Keys: keys, Children: make(map[string]NodeID, len(keys))})
	for _, k := range keys {
		child, err := d.build(m[k], k, schema)
		if err != nil {
			return 0, err
		}
		d.nodes[id].Children[k] = child
	}
	return id, nil
}

func (d *Document) buildSequence(items []any, name string, schema *Schema) (NodeID, error) {
	idField := schema.IdentityKey(name)
	keys := make([]string, 0, len(items))
	id := d.append(node{Kind: KindSequence, Children: make(map[string]NodeID, len(items))})

	for i, item := range items {
		elem, ok := item.(map[string]any)
		if !ok {
			return 0, domain.Validationf("sequence %q element %d is %T, expected a map with identity key %q",
				name, i, item, idField)
		}
		identRaw, ok := elem[idField]
		if !ok {
			return 0, domain.Validationf("sequence %q element %d missing identity key %q", name, i, idField)
		}
		ident, err := identityString(identRaw)
		if err != nil {
			return 0, domain.Validationf("sequence %q element %d: %v", name, i, err)
		}
		if _, dup := d.nodes[id].Children[ident]; dup {
			return 0, domain.Validationf("sequence %q has duplicate identity %q", name, ident)
		}
		child, err := d.buildMap(elem, schema)
		if err != nil {
			return 0, err
		}
		keys = append(keys, ident)
		d.nodes[id].Children[ident] = child
	}
	d.nodes[id].Keys = keys
	return id, nil
}

func (d *Document) append(n node) NodeID {
	d.nodes = append(d.nodes, n)
	return NodeID(len(d.nodes) - 1)
}

func identityString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		if s == "" {
			return "", fmt.Errorf("empty identity value")
		}
		return s, nil
	case float64:
		return fmt.Sprintf("%v", s), nil
	default:
		return "", fmt.Errorf("identity value must be a string or number, got %T", v)
	}
}

// GetAtPath resolves a path to the exported value of the subtree it
// addresses. Absent paths return InvalidPathError.
func GetAtPath(d *Document, path Path) (any, error) {
	id, err := resolve(d, path)
	if err != nil {
		return nil, err
	}
	return d.exportNode(id), nil
}

// HasPath reports whether a path is present in the document.
func HasPath(d *Document, path Path) bool {
	_, err := resolve(d, path)
	return err == nil
}

func resolve(d *Document, path Path) (NodeID, error) {
	id := d.root
	for i, step := range path {
		n := d.nodes[id]
		if n.Kind != KindMap && n.Kind != KindSequence {
			return 0, &domain.InvalidPathError{Path: path[:i+1].String()}
		}
		child, ok := n.Children[step.Key]
		if !ok {
			return 0, &domain.InvalidPathError{Path: path[:i+1].String()}
		}
		id = child
	}
	return id, nil
}

// Walk visits every node in depth-first preorder, calling fn with the
// node's path and id. Returning false from fn stops descent below that
// node but continues with siblings.
func Walk(d *Document, fn func(path Path, id NodeID) bool) {
	walk(d, d.root, nil, fn)
}

func walk(d *Document, id NodeID, path Path, fn func(Path, NodeID) bool) {
	if !fn(path, id) {
		return
	}
	n := d.nodes[id]
	switch n.Kind {
	case KindMap:
		for _, k := range n.Keys {
			walk(d, n.Children[k], path.Key(k), fn)
		}
	case KindSequence:
		for _, ident := range n.Keys {
			walk(d, n.Children[ident], path.Elem(ident), fn)
		}
	}
}

// Export converts the document back to plain Go values (map[string]any,
// []any, scalars), suitable for JSON encoding or for callers that edit
// and re-normalize.
func Export(d *Document) any {
	return d.exportNode(d.root)
}

func (d *Document) exportNode(id NodeID) any {
	n := d.nodes[id]
	switch n.Kind {
	case KindMap:
		m := make(map[string]any, len(n.Keys))
		for _, k := range n.Keys {
			m[k] = d.exportNode(n.Children[k])
		}
		return m
	case KindSequence:
		s := make([]any, 0, len(n.Keys))
		for _, ident := range n.Keys {
			s = append(s, d.exportNode(n.Children[ident]))
		}
		return s
	default:
		return n.Scalar
	}
}

// Encode renders the document as canonical JSON: map keys in their
// normalized (sorted) order, sequence elements in identity order.
// Content addressing depends on this encoding being deterministic.
func Encode(d *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.encodeNode(&buf, d.root); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d *Document) encodeNode(buf *bytes.Buffer, id NodeID) error {
	n := d.nodes[id]
	switch n.Kind {
	case KindMap:
		buf.WriteByte('{')
		for i, k := range n.Keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := d.encodeNode(buf, n.Children[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindSequence:
		buf.WriteByte('[')
		for i, ident := range n.Keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := d.encodeNode(buf, n.Children[ident]); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		scalar, err := json.Marshal(n.Scalar)
		if err != nil {
			return err
		}
		buf.Write(scalar)
	}
	return nil
}

// Decode parses canonical JSON produced by Encode (or any JSON body)
// and normalizes it under the given schema.
func Decode(data []byte, schema *Schema) (*Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.Validationf("malformed document body: %v", err)
	}
	return Normalize(raw, schema)
}

// ScalarEqual compares two normalized scalar values.
func ScalarEqual(a, b any) bool { return a == b }
