package comment

import (
	"errors"
	"testing"

	"github.com/nholden/verso/internal/domain"
	"github.com/nholden/verso/internal/history"
)

func newService() *Service {
	return NewService(NewMemoryStore(), history.NewMemoryLog())
}

func TestCreateValidation(t *testing.T) {
	s := newService()
	if _, err := s.Create("doc-1", "v1", "", "", "alice", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty text: %v, want validation error", err)
	}
	if _, err := s.Create("doc-1", "v1", "", "looks good", "alice", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("reply to unknown parent: %v, want ErrNotFound", err)
	}
}

func TestReplyMustShareVersion(t *testing.T) {
	s := newService()
	parent, err := s.Create("doc-1", "v1", "analyses[AN1].name", "rename this", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create("doc-1", "v2", "", "done", "bob", parent.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("cross-version reply: %v, want validation error", err)
	}
	reply, err := s.Create("doc-1", "v1", "", "done", "bob", parent.ID)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.ParentID != parent.ID {
		t.Errorf("reply parent = %s", reply.ParentID)
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	s := newService()
	c, err := s.Create("doc-1", "v1", "", "check the population", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	first, err := s.Resolve(c.ID, "bob")
	if err != nil || !first.Resolved {
		t.Fatalf("resolve: %+v, %v", first, err)
	}
	second, err := s.Resolve(c.ID, "bob")
	if err != nil || !second.Resolved {
		t.Fatalf("re-resolve: %+v, %v", second, err)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Error("re-resolve bumped UpdatedAt")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newService()
	c, err := s.Create("doc-1", "v1", "", "draft note", "alice", "")
	if err != nil {
		t.Fatal(err)
	}
	updated, err := s.Update(c.ID, "final note")
	if err != nil || updated.Text != "final note" {
		t.Fatalf("update: %+v, %v", updated, err)
	}
	if _, err := s.Update(c.ID, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty update: %v", err)
	}

	if err := s.Delete(c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(c.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("double delete: %v, want ErrNotFound", err)
	}
	if list, _ := s.ListByVersion("v1"); len(list) != 0 {
		t.Errorf("comments after delete = %d", len(list))
	}
}
