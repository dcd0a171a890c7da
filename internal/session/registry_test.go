package session

import "testing"

func TestCreateEvictsPriorSessionThroughHandler(t *testing.T) {
	r := NewRegistry()
	var evicted *Session
	r.SetEvictionHandler(func(s *Session) { evicted = s })

	first := r.Create(1, "peppy", PrivPublic|PrivNormal, false)
	second := r.Create(1, "peppy", PrivPublic|PrivNormal, false)

	if evicted == nil || evicted.ID != first.ID {
		t.Fatal("expected the eviction handler to be called with the displaced session")
	}
	if _, ok := r.ByID(first.ID); ok {
		t.Fatal("expected the displaced session to be gone from the id index")
	}
	cur, ok := r.ByUserID(1)
	if !ok || cur.ID != second.ID {
		t.Fatal("expected the user-id index to point at the new session")
	}
}

func TestCreateTournamentSessionDoesNotEvict(t *testing.T) {
	r := NewRegistry()
	var evicted *Session
	r.SetEvictionHandler(func(s *Session) { evicted = s })

	normal := r.Create(1, "peppy", PrivPublic|PrivNormal, false)
	r.Create(1, "peppy", PrivPublic|PrivNormal, true)

	if evicted != nil {
		t.Fatal("a tournament login should not evict the normal session")
	}
	if _, ok := r.ByID(normal.ID); !ok {
		t.Fatal("the normal session should still be registered")
	}
}
