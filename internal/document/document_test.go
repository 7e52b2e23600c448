package document

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/nholden/verso/internal/domain"
)

func mustNormalize(t *testing.T, raw any) *Document {
	t.Helper()
	d, err := Normalize(raw, nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return d
}

func TestNormalizeKinds(t *testing.T) {
	d := mustNormalize(t, map[string]any{
		"title":   "Study A",
		"count":   float64(3),
		"signed":  true,
		"comment": nil,
		"meta":    map[string]any{"phase": "III"},
		"analyses": []any{
			map[string]any{"id": "AN1", "name": "Primary"},
		},
	})

	root := d.Root()
	if d.KindOf(root) != KindMap {
		t.Fatalf("root kind = %s", d.KindOf(root))
	}
	// Map keys come back sorted regardless of input order.
	want := []string{"analyses", "comment", "count", "meta", "signed", "title"}
	if !reflect.DeepEqual(d.KeysOf(root), want) {
		t.Errorf("keys = %v, want %v", d.KeysOf(root), want)
	}

	checks := map[string]Kind{
		"title":    KindString,
		"count":    KindNumber,
		"signed":   KindBool,
		"comment":  KindNull,
		"meta":     KindMap,
		"analyses": KindSequence,
	}
	for key, kind := range checks {
		id, ok := d.Child(root, key)
		if !ok {
			t.Fatalf("missing child %s", key)
		}
		if d.KindOf(id) != kind {
			t.Errorf("%s kind = %s, want %s", key, d.KindOf(id), kind)
		}
	}
}

func TestNormalizeRejectsBadSequences(t *testing.T) {
	cases := map[string]any{
		"duplicate identity": map[string]any{
			"analyses": []any{
				map[string]any{"id": "AN1"},
				map[string]any{"id": "AN1"},
			},
		},
		"non-map element": map[string]any{
			"analyses": []any{"AN1"},
		},
		"missing identity": map[string]any{
			"analyses": []any{map[string]any{"name": "Primary"}},
		},
	}
	for name, raw := range cases {
		if _, err := Normalize(raw, nil); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%s: err = %v, want validation error", name, err)
		}
	}
}

func TestSchemaSelectsIdentityKey(t *testing.T) {
	schema := NewSchema(map[string]string{"endpoints": "code"})
	d, err := Normalize(map[string]any{
		"endpoints": []any{
			map[string]any{"code": "EP1", "label": "OS"},
			map[string]any{"code": "EP2", "label": "PFS"},
		},
	}, schema)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	p, _ := ParsePath("endpoints[EP2].label")
	v, err := GetAtPath(d, p)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != "PFS" {
		t.Errorf("endpoints[EP2].label = %v", v)
	}
}

func TestGetAtPathAndHasPath(t *testing.T) {
	d := mustNormalize(t, map[string]any{
		"analyses": []any{
			map[string]any{"id": "AN1", "name": "Primary", "model": map[string]any{"type": "MMRM"}},
		},
	})

	p, _ := ParsePath("analyses[AN1].model.type")
	v, err := GetAtPath(d, p)
	if err != nil || v != "MMRM" {
		t.Fatalf("get = %v, %v", v, err)
	}

	// Subtree access exports the whole element.
	p, _ = ParsePath("analyses[AN1]")
	sub, err := GetAtPath(d, p)
	if err != nil {
		t.Fatalf("get subtree: %v", err)
	}
	if sub.(map[string]any)["name"] != "Primary" {
		t.Errorf("subtree = %v", sub)
	}

	p, _ = ParsePath("analyses[AN9].name")
	if _, err := GetAtPath(d, p); !errors.Is(err, domain.ErrInvalidPath) {
		t.Errorf("absent path: %v, want ErrInvalidPath", err)
	}
	if HasPath(d, p) {
		t.Error("HasPath true for absent element")
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a := mustNormalize(t, map[string]any{
		"b": float64(2), "a": float64(1), "c": map[string]any{"y": "2", "x": "1"},
	})
	b := mustNormalize(t, map[string]any{
		"c": map[string]any{"x": "1", "y": "2"}, "a": float64(1), "b": float64(2),
	})

	ea, err := Encode(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	eb, err := Encode(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(ea, eb) {
		t.Errorf("encodings differ:\n%s\n%s", ea, eb)
	}
	if string(ea) != `{"a":1,"b":2,"c":{"x":"1","y":"2"}}` {
		t.Errorf("canonical form = %s", ea)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := mustNormalize(t, map[string]any{
		"title": "Study A",
		"analyses": []any{
			map[string]any{"id": "AN2", "name": "Secondary"},
			map[string]any{"id": "AN1", "name": "Primary"},
		},
	})
	data, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(Export(original), Export(decoded)) {
		t.Errorf("round trip changed the document")
	}
	// Sequence element order survives the round trip.
	seq, _ := decoded.Child(decoded.Root(), "analyses")
	if got := decoded.KeysOf(seq); !reflect.DeepEqual(got, []string{"AN2", "AN1"}) {
		t.Errorf("sequence order = %v", got)
	}
}

func TestWalkPreorder(t *testing.T) {
	d := mustNormalize(t, map[string]any{
		"analyses": []any{
			map[string]any{"id": "AN1", "name": "Primary"},
		},
		"title": "Study A",
	})

	var paths []string
	Walk(d, func(p Path, _ NodeID) bool {
		paths = append(paths, p.String())
		return true
	})
	want := []string{
		"", "analyses", "analyses[AN1]", "analyses[AN1].id", "analyses[AN1].name", "title",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("walk order = %v, want %v", paths, want)
	}
}

func TestParsePath(t *testing.T) {
	p, err := ParsePath("analyses[AN1].model.type")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := Path{
		{Key: "analyses"},
		{Key: "AN1", Elem: true},
		{Key: "model"},
		{Key: "type"},
	}
	if !p.Equal(want) {
		t.Errorf("parsed = %#v", p)
	}
	if p.String() != "analyses[AN1].model.type" {
		t.Errorf("string = %s", p.String())
	}

	for _, bad := range []string{"", "analyses[", "analyses[]"} {
		if _, err := ParsePath(bad); err == nil {
			t.Errorf("parse %q succeeded", bad)
		}
	}
}
