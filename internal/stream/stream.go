// Package stream implements the named multi-subscriber fanout fabric
// that carries packets between sessions: "main", "lobby", "chat/{name}",
// "spect/{hostUserId}", "multi/{matchId}", "multi/{matchId}/playing".
package stream

import "sync"

// targetPool recycles snapshot slices used while broadcasting, avoiding
// an allocation per broadcast under heavy fanout. Mirrors the teacher's
// Room.Broadcast targetPool: snapshot member ids under RLock, release
// the lock, then deliver — so I/O never happens while holding the
// stream's lock.
var targetPool = sync.Pool{
	New: func() any { return make([]string, 0, 64) },
}

// Sender delivers bytes to a session id. Implemented by the chat,
// multiplayer and spectator services (each looks the id up in the
// session registry); kept as an interface here so stream
// stays decoupled from the session package (no cyclic graphs, per
// spec.md's Design Notes).
type Sender interface {
	SendTo(sessionID string, b []byte)
}

// Stream is a named fanout set of session ids.
type Stream struct {
	name    string
	mu      sync.RWMutex
	members map[string]struct{}
}

func newStream(name string) *Stream {
	return &Stream{name: name, members: make(map[string]struct{})}
}

// Join adds a session to the stream.
func (s *Stream) Join(sessionID string) {
	s.mu.Lock()
	s.members[sessionID] = struct{}{}
	s.mu.Unlock()
}

// Leave removes a session from the stream.
func (s *Stream) Leave(sessionID string) {
	s.mu.Lock()
	delete(s.members, sessionID)
	s.mu.Unlock()
}

// Has reports whether sessionID is currently a member.
func (s *Stream) Has(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[sessionID]
	return ok
}

// Members returns a snapshot slice of current member session ids.
func (s *Stream) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	return out
}

// Count returns the number of current members.
func (s *Stream) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Broadcast enqueues b on every current member except those in exclude.
// Membership is snapshotted under RLock and released before delivery, so
// a broadcast never blocks joins/leaves, and a session removed mid-
// broadcast may or may not receive this broadcast but never a later one.
func (s *Stream) Broadcast(sender Sender, b []byte, exclude map[string]struct{}) {
	targets := targetPool.Get().([]string)
	targets = targets[:0]

	s.mu.RLock()
	for id := range s.members {
		if exclude != nil {
			if _, skip := exclude[id]; skip {
				continue
			}
		}
		targets = append(targets, id)
	}
	s.mu.RUnlock()

	for _, id := range targets {
		sender.SendTo(id, b)
	}

	targetPool.Put(targets) //nolint:staticcheck // pooled slice re-sliced to 0 on reuse
}
