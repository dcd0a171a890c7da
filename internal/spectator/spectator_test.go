package spectator

import (
	"testing"

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

func TestSpectatorJoinSequence(t *testing.T) {
	streams := stream.NewRegistry()
	sessions := &fakeSessions{byID: make(map[string]*session.Session)}
	svc := NewService(streams, sessions)

	h := session.New("h", 1, "host", 1)
	f1 := session.New("f1", 2, "follower1", 1)
	f2 := session.New("f2", 3, "follower2", 1)
	for _, s := range []*session.Session{h, f1, f2} {
		sessions.byID[s.ID] = s
	}

	svc.StartSpectating(f1, 1)
	if len(h.FetchQueue()) == 0 {
		t.Fatal("host should receive spectatorJoined for the first follower")
	}

	svc.StartSpectating(f2, 1)
	if len(h.FetchQueue()) == 0 {
		t.Fatal("host should receive spectatorJoined for the second follower")
	}
	if len(f1.FetchQueue()) == 0 {
		t.Fatal("existing follower should be told about the new fellow spectator")
	}
}

func TestRelayFramesReachesFollowersNotHost(t *testing.T) {
	streams := stream.NewRegistry()
	sessions := &fakeSessions{byID: make(map[string]*session.Session)}
	svc := NewService(streams, sessions)

	h := session.New("h", 1, "host", 1)
	f1 := session.New("f1", 2, "follower1", 1)
	sessions.byID[h.ID] = h
	sessions.byID[f1.ID] = f1
	svc.StartSpectating(f1, 1)
	h.FetchQueue()
	f1.FetchQueue()

	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = byte(i)
	}
	svc.RelayFrames(h, payload)

	if len(h.FetchQueue()) != 0 {
		t.Fatal("host should not receive its own frames")
	}
	got := f1.FetchQueue()
	if len(got) != 107 { // 7-byte header + 100-byte payload
		t.Fatalf("follower should receive the relayed frame, got %d bytes", len(got))
	}
}

func TestHostDisconnectedStopsAllFollowers(t *testing.T) {
	streams := stream.NewRegistry()
	sessions := &fakeSessions{byID: make(map[string]*session.Session)}
	svc := NewService(streams, sessions)

	h := session.New("h", 1, "host", 1)
	f1 := session.New("f1", 2, "follower1", 1)
	sessions.byID[h.ID] = h
	sessions.byID[f1.ID] = f1
	svc.StartSpectating(f1, 1)

	svc.HostDisconnected(h)
	if f1.Spectating() != "" {
		t.Fatal("follower should have stopped spectating")
	}
}
