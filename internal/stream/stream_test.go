package stream

import (
	"sync"
	"testing"
)

type fakeSender struct {
	mu  sync.Mutex
	got map[string][][]byte
}

func newFakeSender() *fakeSender { return &fakeSender{got: make(map[string][][]byte)} }

func (f *fakeSender) SendTo(sessionID string, b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got[sessionID] = append(f.got[sessionID], b)
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry()
	r.Join(Main, "a")
	r.Join(Main, "b")
	r.Join(Main, "c")

	sender := newFakeSender()
	r.Broadcast(sender, Main, []byte("hi"), map[string]struct{}{"a": {}})

	if len(sender.got["a"]) != 0 {
		t.Fatal("excluded member should not receive broadcast")
	}
	if len(sender.got["b"]) != 1 || len(sender.got["c"]) != 1 {
		t.Fatal("other members should each receive exactly one broadcast")
	}
}

func TestLeaveStopsFutureBroadcasts(t *testing.T) {
	r := NewRegistry()
	r.Join(Lobby, "a")
	sender := newFakeSender()
	r.Broadcast(sender, Lobby, []byte("1"), nil)
	r.Leave(Lobby, "a")
	r.Broadcast(sender, Lobby, []byte("2"), nil)

	if len(sender.got["a"]) != 1 {
		t.Fatalf("expected exactly one delivery before leave, got %d", len(sender.got["a"]))
	}
}

func TestReservedNameHelpers(t *testing.T) {
	if ChatName("osu") != "chat/osu" {
		t.Fatal("unexpected chat stream name")
	}
	if SpectatorName(5) != "spect/5" {
		t.Fatal("unexpected spectator stream name")
	}
	if MatchName(10) != "multi/10" {
		t.Fatal("unexpected match stream name")
	}
	if MatchPlayingName(10) != "multi/10/playing" {
		t.Fatal("unexpected match playing stream name")
	}
}

func TestDestroyRemovesStream(t *testing.T) {
	r := NewRegistry()
	r.Join("chat/x", "a")
	r.Destroy("chat/x")
	if members := r.Members("chat/x"); members != nil {
		t.Fatal("destroyed stream should report no members")
	}
}
