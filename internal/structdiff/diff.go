// Package structdiff computes structural deltas between two document
// snapshots: value changes, keyed-item additions and removals, and node
// type changes, each addressed by an identity-keyed structural path.
//
// Sequences are matched by element identity, never by position, so a
// reordered-but-unchanged sequence produces an empty diff. A type change
// at a path is classified only as a type change, never doubled as a
// value change.
package structdiff

import (
	"github.com/nholden/verso/internal/document"
)

// ChangeKind tags the variant of a single change entry. Consumers are
// expected to switch exhaustively over the four cases.
type ChangeKind uint8

const (
	ValueChanged ChangeKind = iota + 1
	ItemAdded
	ItemRemoved
	TypeChanged
)

// String returns the wire name of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ValueChanged:
		return "value_changed"
	case ItemAdded:
		return "item_added"
	case ItemRemoved:
		return "item_removed"
	case TypeChanged:
		return "type_changed"
	default:
		return "unknown"
	}
}

// Change is one structural delta entry.
//
// Field use by kind:
//   - ValueChanged: Old and New carry the scalar values.
//   - ItemAdded: New carries the exported added subtree.
//   - ItemRemoved: Old carries the exported removed subtree.
//   - TypeChanged: Old/New carry exported subtrees, OldType/NewType the
//     node kinds.
type Change struct {
	Kind     ChangeKind
	Path     document.Path
	Old      any
	New      any
	OldType  document.Kind
	NewType  document.Kind
	Sequence bool // item change inside an identity-keyed sequence rather than a map
}

// Summary aggregates a diff for display and audit records.
type Summary struct {
	TotalChanges  int
	ValuesChanged int
	ItemsAdded    int
	ItemsRemoved  int
	TypeChanges   int
	AffectedPaths []string // deduplicated top-level keys, in first-touched order
}

// Diff is a full structural delta. Changes preserves walk order; the
// per-kind maps are keyed by path string for random access.
type Diff struct {
	Changes       []Change
	ValuesChanged map[string]Change
	ItemsAdded    map[string]Change
	ItemsRemoved  map[string]Change
	TypeChanges   map[string]Change
	Summary       Summary
}

// Empty reports whether the diff has no changes.
func (d *Diff) Empty() bool { return len(d.Changes) == 0 }

// At returns the change recorded for a path, if any.
func (d *Diff) At(path string) (Change, bool) {
	if c, ok := d.ValuesChanged[path]; ok {
		return c, true
	}
	if c, ok := d.ItemsAdded[path]; ok {
		return c, true
	}
	if c, ok := d.ItemsRemoved[path]; ok {
		return c, true
	}
	c, ok := d.TypeChanges[path]
	return c, ok
}

// PathSet returns the set of path strings touched by the diff.
func (d *Diff) PathSet() map[string]struct{} {
	set := make(map[string]struct{}, len(d.Changes))
	for _, c := range d.Changes {
		set[c.Path.String()] = struct{}{}
	}
	return set
}

// Invert returns the diff with arguments swapped: every added entry
// relabeled removed and vice versa, old and new exchanged everywhere.
// Compute(b, a) and Compute(a, b).Invert() are equivalent by contract.
func (d *Diff) Invert() *Diff {
	out := newDiff()
	for _, c := range d.Changes {
		inv := Change{
			Kind:     c.Kind,
			Path:     c.Path,
			Old:      c.New,
			New:      c.Old,
			OldType:  c.NewType,
			NewType:  c.OldType,
			Sequence: c.Sequence,
		}
		switch c.Kind {
		case ItemAdded:
			inv.Kind = ItemRemoved
		case ItemRemoved:
			inv.Kind = ItemAdded
		}
		out.record(inv)
	}
	out.finish()
	return out
}

// Filter returns a diff containing only changes whose path equals or
// descends from one of the given prefixes.
func (d *Diff) Filter(prefixes []document.Path) *Diff {
	out := newDiff()
	for _, c := range d.Changes {
		for _, p := range prefixes {
			if c.Path.HasPrefix(p) || p.HasPrefix(c.Path) {
				out.record(c)
				break
			}
		}
	}
	out.finish()
	return out
}

// Compute walks base and other in lock-step by path and returns their
// structural delta. Compute(d, d) is empty for every normalized d.
func Compute(base, other *document.Document) *Diff {
	d := newDiff()
	d.compare(base, other, base.Root(), other.Root(), nil)
	d.finish()
	return d
}

func newDiff() *Diff {
	return &Diff{
		ValuesChanged: make(map[string]Change),
		ItemsAdded:    make(map[string]Change),
		ItemsRemoved:  make(map[string]Change),
		TypeChanges:   make(map[string]Change),
	}
}

func (d *Diff) compare(base, other *document.Document, baseID, otherID document.NodeID, path document.Path) {
	baseKind := base.KindOf(baseID)
	otherKind := other.KindOf(otherID)

	if baseKind != otherKind {
		d.record(Change{
			Kind:    TypeChanged,
			Path:    path,
			Old:     exportAt(base, baseID),
			New:     exportAt(other, otherID),
			OldType: baseKind,
			NewType: otherKind,
		})
		return
	}

	switch baseKind {
	case document.KindMap:
		d.compareKeyed(base, other, baseID, otherID, path, false)
	case document.KindSequence:
		d.compareKeyed(base, other, baseID, otherID, path, true)
	default:
		oldV := base.ScalarOf(baseID)
		newV := other.ScalarOf(otherID)
		if !document.ScalarEqual(oldV, newV) {
			d.record(Change{Kind: ValueChanged, Path: path, Old: oldV, New: newV})
		}
	}
}

// compareKeyed handles both maps and sequences: the two differ only in
// how child keys are derived (map key vs element identity) and in the
// path step they produce.
func (d *Diff) compareKeyed(base, other *document.Document, baseID, otherID document.NodeID, path document.Path, sequence bool) {
	step := func(key string) document.Path {
		if sequence {
			return path.Elem(key)
		}
		return path.Key(key)
	}

	otherKeys := make(map[string]document.NodeID)
	for _, k := range other.KeysOf(otherID) {
		child, _ := other.Child(otherID, k)
		otherKeys[k] = child
	}

	for _, k := range base.KeysOf(baseID) {
		baseChild, _ := base.Child(baseID, k)
		if otherChild, ok := otherKeys[k]; ok {
			d.compare(base, other, baseChild, otherChild, step(k))
			delete(otherKeys, k)
			continue
		}
		d.record(Change{
			Kind:     ItemRemoved,
			Path:     step(k),
			Old:      exportAt(base, baseChild),
			Sequence: sequence,
		})
	}

	// Remaining keys exist only in other; visit in other's order.
	for _, k := range other.KeysOf(otherID) {
		child, ok := otherKeys[k]
		if !ok {
			continue
		}
		d.record(Change{
			Kind:     ItemAdded,
			Path:     step(k),
			New:      exportAt(other, child),
			Sequence: sequence,
		})
	}
}

func (d *Diff) record(c Change) {
	d.Changes = append(d.Changes, c)
	key := c.Path.String()
	switch c.Kind {
	case ValueChanged:
		d.ValuesChanged[key] = c
	case ItemAdded:
		d.ItemsAdded[key] = c
	case ItemRemoved:
		d.ItemsRemoved[key] = c
	case TypeChanged:
		d.TypeChanges[key] = c
	}
}

func (d *Diff) finish() {
	seen := make(map[string]struct{})
	for _, c := range d.Changes {
		root := c.Path.Root()
		if _, ok := seen[root]; !ok {
			seen[root] = struct{}{}
			d.Summary.AffectedPaths = append(d.Summary.AffectedPaths, root)
		}
	}
	d.Summary.ValuesChanged = len(d.ValuesChanged)
	d.Summary.ItemsAdded = len(d.ItemsAdded)
	d.Summary.ItemsRemoved = len(d.ItemsRemoved)
	d.Summary.TypeChanges = len(d.TypeChanges)
	d.Summary.TotalChanges = len(d.Changes)
}

// exportAt exports the subtree rooted at id using a single-node view.
func exportAt(d *document.Document, id document.NodeID) any {
	if id == d.Root() {
		return document.Export(d)
	}
	// Export relies on the arena being reachable from the root, so an
	// arbitrary subtree is exported by walking it directly.
	switch d.KindOf(id) {
	case document.KindMap:
		m := make(map[string]any, len(d.KeysOf(id)))
		for _, k := range d.KeysOf(id) {
			child, _ := d.Child(id, k)
			m[k] = exportAt(d, child)
		}
		return m
	case document.KindSequence:
		s := make([]any, 0, len(d.KeysOf(id)))
		for _, k := range d.KeysOf(id) {
			child, _ := d.Child(id, k)
			s = append(s, exportAt(d, child))
		}
		return s
	default:
		return d.ScalarOf(id)
	}
}
