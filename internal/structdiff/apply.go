package structdiff

import (
	"fmt"

	"github.com/nholden/verso/internal/document"
	"github.com/nholden/verso/internal/domain"
)

// Apply replays a set of changes onto a base document and returns the
// resulting snapshot. The base is never mutated; the result is rebuilt
// through Normalize so it carries the same structural guarantees as any
// caller-submitted document.
//
// A change addressing a path absent from the base (for example a value
// change below an element another change already removed) fails with
// InvalidPathError.
func Apply(base *document.Document, changes []Change, schema *document.Schema) (*document.Document, error) {
	if schema == nil {
		schema = document.DefaultSchema()
	}
	root := document.Export(base)
	for _, c := range changes {
		if len(c.Path) == 0 {
			// Whole-document replacement (root-level type or value change).
			root = c.New
			continue
		}
		next, err := applyChange(root, c.Path, c.Path, "", schema, c)
		if err != nil {
			return nil, err
		}
		root = next
	}
	return document.Normalize(root, schema)
}

// applyChange descends rest and returns the updated node. full is kept
// for error reporting; seqName is the map key naming the current
// sequence, which selects its identity field.
func applyChange(node any, full, rest document.Path, seqName string, schema *document.Schema, c Change) (any, error) {
	step := rest[0]
	last := len(rest) == 1

	if step.Elem {
		slice, ok := node.([]any)
		if !ok {
			return nil, &domain.InvalidPathError{Path: full.String()}
		}
		idField := schema.IdentityKey(seqName)
		idx := findElem(slice, idField, step.Key)

		if last {
			switch c.Kind {
			case ItemAdded:
				if idx >= 0 {
					return nil, domain.Validationf("element %q already present at %s", step.Key, full.String())
				}
				return append(slice, c.New), nil
			case ItemRemoved:
				if idx < 0 {
					return nil, &domain.InvalidPathError{Path: full.String()}
				}
				return append(slice[:idx:idx], slice[idx+1:]...), nil
			default:
				if idx < 0 {
					return nil, &domain.InvalidPathError{Path: full.String()}
				}
				slice[idx] = c.New
				return slice, nil
			}
		}

		if idx < 0 {
			return nil, &domain.InvalidPathError{Path: full.String()}
		}
		next, err := applyChange(slice[idx], full, rest[1:], "", schema, c)
		if err != nil {
			return nil, err
		}
		slice[idx] = next
		return slice, nil
	}

	m, ok := node.(map[string]any)
	if !ok {
		return nil, &domain.InvalidPathError{Path: full.String()}
	}

	if last {
		switch c.Kind {
		case ItemAdded:
			m[step.Key] = c.New
			return m, nil
		case ItemRemoved:
			if _, exists := m[step.Key]; !exists {
				return nil, &domain.InvalidPathError{Path: full.String()}
			}
			delete(m, step.Key)
			return m, nil
		default:
			if _, exists := m[step.Key]; !exists {
				return nil, &domain.InvalidPathError{Path: full.String()}
			}
			m[step.Key] = c.New
			return m, nil
		}
	}

	child, exists := m[step.Key]
	if !exists {
		return nil, &domain.InvalidPathError{Path: full.String()}
	}
	next, err := applyChange(child, full, rest[1:], step.Key, schema, c)
	if err != nil {
		return nil, err
	}
	m[step.Key] = next
	return m, nil
}

func findElem(slice []any, idField, identity string) int {
	for i, item := range slice {
		elem, ok := item.(map[string]any)
		if !ok {
			continue
		}
		switch v := elem[idField].(type) {
		case string:
			if v == identity {
				return i
			}
		case float64:
			if fmt.Sprintf("%v", v) == identity {
				return i
			}
		}
	}
	return -1
}
