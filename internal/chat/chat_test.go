package chat

import (
	"testing"
	"time"

	"golang.org/x/time/rate"

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
	channels := NewRegistry()
	channels.Add(&Channel{Name: "#osu", PublicRead: true, PublicWrite: true})
	streams := stream.NewRegistry()
	sessions := &fakeSessions{byID: make(map[string]*session.Session)}
	limiterForSession := map[string]*rate.Limiter{}
	svc := NewService(channels, streams, sessions, nil, func(id string) *rate.Limiter {
		l, ok := limiterForSession[id]
		if !ok {
			l = rate.NewLimiter(rate.Inf, 1000)
			limiterForSession[id] = l
		}
		return l
	})
	return svc, sessions
}

func TestJoinAddsToStreamAndChannelSet(t *testing.T) {
	svc, sessions := newTestService(t)
	s := session.New("tok", 1, "peppy", 1)
	sessions.byID[s.ID] = s

	_, _, err := svc.Join(s, "#osu")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !s.InChannel("#osu") {
		t.Fatal("session should be joined")
	}
	if !svc.Streams.Get(stream.ChatName("#osu")).Has(s.ID) {
		t.Fatal("stream should contain session")
	}
}

func TestSendPublicBroadcastsExcludingSender(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	sessions.byID[a.ID] = a
	sessions.byID[b.ID] = b
	svc.Join(a, "#osu")
	svc.Join(b, "#osu")

	_, err := svc.SendPublic(a, "#osu", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(a.FetchQueue()) != 0 {
		t.Fatal("sender should not receive its own message")
	}
	if len(b.FetchQueue()) == 0 {
		t.Fatal("other member should receive the message")
	}
}

func TestSendPublicRejectsNonMember(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	sessions.byID[a.ID] = a

	_, err := svc.SendPublic(a, "#osu", "hello")
	if err != ErrNoWriteAccess {
		t.Fatalf("expected ErrNoWriteAccess, got %v", err)
	}
}

func TestSendPrivateDeliversToRecipient(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	sessions.byID[a.ID] = a
	sessions.byID[b.ID] = b

	svc.SendPrivate(a, 2, "bob", "hi", "")
	if len(b.FetchQueue()) == 0 {
		t.Fatal("recipient should receive the private message")
	}
}

func TestSendPrivateRejectsWhenTargetBlocksNonFriendPM(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	b.BlockNonFriendPM = true
	sessions.byID[a.ID] = a
	sessions.byID[b.ID] = b

	reply := svc.SendPrivate(a, 2, "bob", "hi", "")
	if len(b.FetchQueue()) != 0 {
		t.Fatal("message should not have been delivered to a user blocking non-friend PMs")
	}
	if reply == nil {
		t.Fatal("expected a dms-blocked reply packet for the sender")
	}
}

func TestSendPrivateRejectsWhenTargetIsSilenced(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	b := session.New("b", 2, "bob", 1)
	b.Silence(time.Minute)
	sessions.byID[a.ID] = a
	sessions.byID[b.ID] = b

	reply := svc.SendPrivate(a, 2, "bob", "hi", "")
	if len(b.FetchQueue()) != 0 {
		t.Fatal("message should not have been delivered to a silenced user")
	}
	if reply == nil {
		t.Fatal("expected a target-is-silenced reply packet for the sender")
	}
}

func TestSilencedSessionCannotSendPublic(t *testing.T) {
	svc, sessions := newTestService(t)
	a := session.New("a", 1, "alice", 1)
	sessions.byID[a.ID] = a
	svc.Join(a, "#osu")
	a.Silence(1000_000_000) // 1s, written in nanoseconds

	out, err := svc.SendPublic(a, "#osu", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out == nil {
		t.Fatal("expected a silence notice packet")
	}
}
