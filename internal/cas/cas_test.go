package cas

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nholden/verso/internal/store"
)

func TestMemoryCASRoundTrip(t *testing.T) {
	c := NewMemoryCAS()
	body := []byte(`{"title":"Study A"}`)
	h := Sum(body)

	if err := c.Put(h, body); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := c.Get(h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("get = %s", got)
	}
	if ok, _ := c.Has(h); !ok {
		t.Error("Has = false after Put")
	}
}

func TestPutRejectsHashMismatch(t *testing.T) {
	c := NewMemoryCAS()
	if err := c.Put(Sum([]byte("a")), []byte("b")); err == nil {
		t.Fatal("put with wrong hash succeeded")
	}
}

func TestPutIsIdempotent(t *testing.T) {
	c := NewMemoryCAS()
	body := []byte(`{"title":"Study A"}`)
	h := Sum(body)
	if err := c.Put(h, body); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := c.Put(h, body); err != nil {
		t.Fatalf("second put: %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestGetMissing(t *testing.T) {
	c := NewMemoryCAS()
	if _, err := c.Get(Sum([]byte("absent"))); err == nil {
		t.Fatal("get of absent blob succeeded")
	}
}

func TestParseHash(t *testing.T) {
	h := Sum([]byte("payload"))
	parsed, err := ParseHash(h.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != h {
		t.Errorf("parsed = %s, want %s", parsed, h)
	}

	for _, bad := range []string{"zz", strings.Repeat("ab", 16)[:30], ""} {
		if _, err := ParseHash(bad); err == nil {
			t.Errorf("parse %q succeeded", bad)
		}
	}
}

func TestBoltCASRoundTrip(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "cas.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()

	c, err := NewBoltCAS(db)
	if err != nil {
		t.Fatalf("new cas: %v", err)
	}

	// Repetitive JSON compresses; the round trip must still be exact.
	body := []byte(`{"analyses":[{"id":"AN1","name":"Primary","population":"ITT"},{"id":"AN2","name":"Secondary","population":"ITT"}]}`)
	h := Sum(body)
	if err := c.Put(h, body); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := c.Get(h)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("get = %s", got)
	}
	if ok, _ := c.Has(h); !ok {
		t.Error("Has = false after Put")
	}
	if ok, _ := c.Has(Sum([]byte("other"))); ok {
		t.Error("Has = true for absent blob")
	}
}
