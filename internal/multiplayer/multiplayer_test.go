package multiplayer

import (
	"testing"

	"bancho/server/internal/chat"
	"bancho/server/internal/session"
	"bancho/server/internal/stream"
)

type fakeSessions struct {
	byID map[string]*session.Session
}

func (f *fakeSessions) ByID(id string) (*session.Session, bool) {
	s, ok := f.byID[id]
	return s, ok
}

func (f *fakeSessions) ByUserID(userID int32) (*session.Session, bool) {
	for _, s := range f.byID {
		if s.UserID == userID {
			return s, true
		}
	}
	return nil, false
}

func newTestService(t *testing.T) (*Service, *fakeSessions) {
	t.Helper()
	streams := stream.NewRegistry()
	sessions := &fakeSessions{byID: make(map[string]*session.Session)}
	channels := chat.NewRegistry()
	chatSvc := chat.NewService(channels, streams, sessions, nil, nil)
	return NewService(NewRegistry(), streams, sessions, chatSvc, nil), sessions
}

func register(sessions *fakeSessions, s *session.Session) { sessions.byID[s.ID] = s }

func TestCreatePlacesCreatorInSlotZero(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	register(sessions, a)

	m := svc.Create(a, "room1", "", 42, "Song", "md5", 0)
	if m.Slots[0].UserID != 1 || m.Slots[0].Status != SlotNotReady {
		t.Fatalf("expected creator in slot 0, got %+v", m.Slots[0])
	}
	if m.HostUserID != 1 {
		t.Fatal("creator should be host")
	}
	if a.MatchID() != m.ID {
		t.Fatal("creator session should record match id")
	}
}

func TestJoinWrongPassword(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	register(sessions, a)
	register(sessions, b)

	m := svc.Create(a, "room1", "secret", 42, "Song", "md5", 0)
	if err := svc.Join(b, m, "wrong"); err != ErrWrongPassword {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestJoinPlacesInLowestOpenSlot(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	register(sessions, a)
	register(sessions, b)

	m := svc.Create(a, "room1", "", 42, "Song", "md5", 0)
	if err := svc.Join(b, m, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if m.Slots[1].UserID != 2 {
		t.Fatalf("expected bob in slot 1, got %+v", m.Slots[1])
	}
}

func TestJoinRejectsUserAlreadyInMatch(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	register(sessions, a)
	register(sessions, b)

	m := svc.Create(a, "room1", "", 42, "Song", "md5", 0)
	if err := svc.Join(b, m, ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := svc.Join(b, m, ""); err != ErrAlreadyInMatch {
		t.Fatalf("expected ErrAlreadyInMatch for a user already occupying a slot, got %v", err)
	}
}

func TestLeaveReassignsHost(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	register(sessions, a)
	register(sessions, b)

	m := svc.Create(a, "room1", "", 42, "Song", "md5", 0)
	svc.Join(b, m, "")
	svc.Leave(a, m)

	if m.HostUserID != 2 {
		t.Fatalf("expected bob to become host, got %d", m.HostUserID)
	}
	if m.Slots[0].Occupied() {
		t.Fatal("alice's old slot should be open")
	}
}

func TestLeaveLastPlayerDisposesMatch(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	register(sessions, a)

	m := svc.Create(a, "room1", "", 42, "Song", "md5", 0)
	svc.Leave(a, m)

	if _, ok := svc.Matches.Get(m.ID); ok {
		t.Fatal("match should have been disposed")
	}
}

func TestStartTransitionsReadyToPlaying(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	register(sessions, a)
	m := svc.Create(a, "room1", "", 42, "Song", "md5", 0)

	if err := svc.Start(a, m); err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.Slots[0].Status != SlotPlaying {
		t.Fatalf("expected playing, got %v", m.Slots[0].Status)
	}
	if !svc.Streams.Get("multi/" + itoa(m.ID) + "/playing").Has(a.ID) {
		t.Fatal("participant should join the playing stream")
	}
}

func TestCompleteRequiresAllTerminal(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	register(sessions, a)
	register(sessions, b)
	m := svc.Create(a, "room1", "", 42, "Song", "md5", 0)
	svc.Join(b, m, "")
	svc.Start(a, m)

	svc.Complete(a, m)
	if !m.InProgress {
		t.Fatal("match should still be in progress with bob unfinished")
	}
	svc.Complete(b, m)
	if m.InProgress {
		t.Fatal("match should have completed once both finished")
	}
	if m.Slots[0].Status != SlotNotReady || m.Slots[1].Status != SlotNotReady {
		t.Fatal("non-quit slots should return to notReady")
	}
}

func TestTransferHostRequiresOccupiedSlot(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	register(sessions, a)
	m := svc.Create(a, "room1", "", 42, "Song", "md5", 0)

	if err := svc.TransferHost(a, m, 99); err != ErrNotInMatch {
		t.Fatalf("expected ErrNotInMatch, got %v", err)
	}
}

func itoa(n int32) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
