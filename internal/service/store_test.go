package service

import (
	"testing"
	"time"
)

func TestStore(t *testing.T) {
	s := NewStore(func() string { return "generated" })
	now := time.Now()

	a, created := s.Create("a", now)
	if !created || a.AgentID != "a" {
		t.Fatalf("unexpected create result %v %+v", created, a)
	}
	g, created := s.Create("", now)
	if !created || g.AgentID != "generated" {
		t.Fatalf("expected generated id, got %+v", g)
	}
	again, created := s.Create("a", now.Add(time.Hour))
	if created || again != a {
		t.Fatal("create on an existing id must return the existing session")
	}
	s.Create("b", now)

	ids := func() []string {
		var out []string
		for _, sess := range s.List() {
			out = append(out, sess.AgentID)
		}
		return out
	}
	if got := ids(); len(got) != 3 || got[0] != "a" || got[1] != "generated" || got[2] != "b" {
		t.Fatalf("expected insertion order, got %v", got)
	}

	if !s.Remove("generated") {
		t.Fatal("expected removal")
	}
	if s.Remove("generated") {
		t.Fatal("second removal must report false")
	}
	if got := ids(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected order after removal %v", got)
	}
	if _, ok := s.Get("generated"); ok {
		t.Fatal("removed session still reachable")
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", s.Len())
	}
}
