package structdiff

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/nholden/verso/internal/document"
	"github.com/nholden/verso/internal/domain"
)

func doc(t *testing.T, raw any) *document.Document {
	t.Helper()
	d, err := document.Normalize(raw, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return d
}

func baseProtocol() map[string]any {
	return map[string]any{
		"title": "Study A",
		"analyses": []any{
			map[string]any{"id": "AN1", "name": "Primary", "population": "ITT"},
			map[string]any{"id": "AN2", "name": "Secondary", "population": "PP"},
		},
	}
}

func TestComputeReflexive(t *testing.T) {
	d := doc(t, baseProtocol())
	if diff := Compute(d, d); !diff.Empty() {
		t.Errorf("self diff = %+v, want empty", diff.Changes)
	}
}

func TestReorderedSequenceIsEmptyDiff(t *testing.T) {
	a := doc(t, baseProtocol())
	b := doc(t, map[string]any{
		"title": "Study A",
		"analyses": []any{
			map[string]any{"id": "AN2", "name": "Secondary", "population": "PP"},
			map[string]any{"id": "AN1", "name": "Primary", "population": "ITT"},
		},
	})
	if diff := Compute(a, b); !diff.Empty() {
		t.Errorf("reorder diff = %+v, want empty", diff.Changes)
	}
}

func TestComputeClassifiesChanges(t *testing.T) {
	a := doc(t, baseProtocol())
	b := doc(t, map[string]any{
		"title": "Study A v2", // value change
		"analyses": []any{
			map[string]any{"id": "AN1", "name": "Primary", "population": "ITT"},
			// AN2 removed
			map[string]any{"id": "AN3", "name": "Exploratory"}, // added
		},
		"status": "draft", // map key added
	})

	d := Compute(a, b)
	if d.Summary.TotalChanges != 4 {
		t.Fatalf("total = %d (%+v), want 4", d.Summary.TotalChanges, d.Changes)
	}
	if _, ok := d.ValuesChanged["title"]; !ok {
		t.Error("missing value change at title")
	}
	if c, ok := d.ItemsRemoved["analyses[AN2]"]; !ok || !c.Sequence {
		t.Errorf("missing sequence removal at analyses[AN2]: %+v", c)
	}
	if c, ok := d.ItemsAdded["analyses[AN3]"]; !ok || !c.Sequence {
		t.Errorf("missing sequence addition at analyses[AN3]: %+v", c)
	}
	if c, ok := d.ItemsAdded["status"]; !ok || c.Sequence {
		t.Errorf("missing map addition at status: %+v", c)
	}
	if !reflect.DeepEqual(d.Summary.AffectedPaths, []string{"analyses", "title", "status"}) {
		t.Errorf("affected paths = %v", d.Summary.AffectedPaths)
	}
}

func TestTypeChangeIsNotDoubled(t *testing.T) {
	a := doc(t, map[string]any{"dose": float64(10)})
	b := doc(t, map[string]any{"dose": "10 mg"})

	d := Compute(a, b)
	if d.Summary.TotalChanges != 1 || d.Summary.TypeChanges != 1 {
		t.Fatalf("summary = %+v, want exactly one type change", d.Summary)
	}
	c := d.TypeChanges["dose"]
	if c.OldType != document.KindNumber || c.NewType != document.KindString {
		t.Errorf("types = %s -> %s", c.OldType, c.NewType)
	}
	if d.Summary.ValuesChanged != 0 {
		t.Error("type change also recorded as value change")
	}
}

func TestInvertSwapLaw(t *testing.T) {
	a := doc(t, baseProtocol())
	b := doc(t, map[string]any{
		"title": "Study A v2",
		"analyses": []any{
			map[string]any{"id": "AN1", "name": "Primary", "population": "mITT"},
			map[string]any{"id": "AN3", "name": "Exploratory"},
		},
	})

	forward := Compute(a, b).Invert()
	backward := Compute(b, a)

	if len(forward.Changes) != len(backward.Changes) {
		t.Fatalf("change counts differ: %d vs %d", len(forward.Changes), len(backward.Changes))
	}
	for path, c := range backward.ValuesChanged {
		inv, ok := forward.ValuesChanged[path]
		if !ok || !reflect.DeepEqual(inv.Old, c.Old) || !reflect.DeepEqual(inv.New, c.New) {
			t.Errorf("value change at %s: inverted %+v, direct %+v", path, inv, c)
		}
	}
	for path := range backward.ItemsAdded {
		if _, ok := forward.ItemsAdded[path]; !ok {
			t.Errorf("inverted diff missing addition at %s", path)
		}
	}
	for path := range backward.ItemsRemoved {
		if _, ok := forward.ItemsRemoved[path]; !ok {
			t.Errorf("inverted diff missing removal at %s", path)
		}
	}
}

func TestApplyReproducesTarget(t *testing.T) {
	a := doc(t, baseProtocol())
	b := doc(t, map[string]any{
		"title": "Study A v2",
		"analyses": []any{
			map[string]any{"id": "AN1", "name": "Primary Endpoint", "population": "ITT"},
			map[string]any{"id": "AN3", "name": "Exploratory"},
		},
		"status": "final",
	})

	d := Compute(a, b)
	rebuilt, err := Apply(a, d.Changes, nil)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	eb, _ := document.Encode(b)
	er, _ := document.Encode(rebuilt)
	if !bytes.Equal(eb, er) {
		t.Errorf("apply result differs:\nwant %s\ngot  %s", eb, er)
	}
}

func TestApplyRejectsAbsentPaths(t *testing.T) {
	a := doc(t, baseProtocol())
	p, _ := document.ParsePath("analyses[AN9].name")
	_, err := Apply(a, []Change{{Kind: ValueChanged, Path: p, New: "x"}}, nil)
	if !errors.Is(err, domain.ErrInvalidPath) {
		t.Fatalf("apply to absent element: %v, want ErrInvalidPath", err)
	}

	p, _ = document.ParsePath("analyses[AN1]")
	_, err = Apply(a, []Change{{Kind: ItemAdded, Path: p, New: map[string]any{"id": "AN1"}, Sequence: true}}, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("re-adding existing element: %v, want validation error", err)
	}
}

func TestFilterByPrefix(t *testing.T) {
	a := doc(t, baseProtocol())
	b := doc(t, map[string]any{
		"title": "Study A v2",
		"analyses": []any{
			map[string]any{"id": "AN1", "name": "Primary Endpoint", "population": "ITT"},
			map[string]any{"id": "AN2", "name": "Secondary", "population": "PP"},
		},
	})

	d := Compute(a, b)
	prefix, _ := document.ParsePath("analyses")
	filtered := d.Filter([]document.Path{prefix})
	if filtered.Summary.TotalChanges != 1 {
		t.Fatalf("filtered = %+v, want only the analyses change", filtered.Changes)
	}
	if _, ok := filtered.ValuesChanged["analyses[AN1].name"]; !ok {
		t.Error("filtered diff missing analyses[AN1].name")
	}
}
