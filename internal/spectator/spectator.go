// Package spectator implements the host/follower frame-relay subprotocol:
// a host session streams its gameplay; any number of followers join its
// "spect/{hostUserId}" stream to receive frames verbatim.
package spectator

import (
	"bancho/server/internal/session"
	"bancho/server/internal/stream"
	"bancho/server/internal/wire"
)

// Sessions is the subset of session.Registry the spectator service needs.
type Sessions interface {
	ByID(id string) (*session.Session, bool)
	ByUserID(userID int32) (*session.Session, bool)
}

// Service wires spectator relay to streams and sessions.
type Service struct {
	Streams  *stream.Registry
	Sessions Sessions
}

// NewService constructs a spectator Service.
func NewService(streams *stream.Registry, sessions Sessions) *Service {
	return &Service{Streams: streams, Sessions: sessions}
}

// SendTo implements stream.Sender.
func (s *Service) SendTo(sessionID string, b []byte) {
	if sess, ok := s.Sessions.ByID(sessionID); ok {
		sess.Enqueue(b)
	}
}

// StartSpectating makes follower begin spectating the session owned by
// hostUserID, per spec.md §4.5's three-step join sequence.
func (s *Service) StartSpectating(follower *session.Session, hostUserID int32) {
	if prev := follower.Spectating(); prev != "" {
		s.StopSpectating(follower)
	}

	host, ok := s.Sessions.ByUserID(hostUserID)
	if !ok {
		return
	}

	streamName := stream.SpectatorName(hostUserID)
	wasEmpty := s.Streams.Get(streamName).Count() == 0

	others := s.Streams.Members(streamName)
	s.Streams.Join(streamName, follower.ID)
	follower.SetSpectating(host.ID)

	host.Enqueue(wire.NewWriter().WriteI32(follower.UserID).Finish(wire.ServerSpectatorJoined))
	if !wasEmpty {
		fellowPacket := wire.NewWriter().WriteI32(follower.UserID).Finish(wire.ServerFellowSpectatorJoined)
		excl := map[string]struct{}{follower.ID: {}}
		for _, id := range others {
			if _, skip := excl[id]; !skip {
				s.SendTo(id, fellowPacket)
			}
		}
	}
}

// StopSpectating reverses StartSpectating, announcing departure to the
// host and remaining followers.
func (s *Service) StopSpectating(follower *session.Session) {
	hostSessionID := follower.Spectating()
	if hostSessionID == "" {
		return
	}
	host, ok := s.Sessions.ByID(hostSessionID)
	if !ok {
		follower.SetSpectating("")
		return
	}

	streamName := stream.SpectatorName(host.UserID)
	s.Streams.Leave(streamName, follower.ID)
	follower.SetSpectating("")

	leftPacket := wire.NewWriter().WriteI32(follower.UserID).Finish(wire.ServerFellowSpectatorLeft)
	s.Streams.Broadcast(s, streamName, leftPacket, nil)
	host.Enqueue(wire.NewWriter().WriteI32(follower.UserID).Finish(wire.ServerSpectatorLeft))
}

// RelayFrames forwards a spectate-frames payload from host verbatim to
// every follower.
func (s *Service) RelayFrames(host *session.Session, payload []byte) {
	packet := wire.NewWriter().WriteRaw(payload).Finish(wire.ServerSpectateFrames)
	s.Streams.Broadcast(s, stream.SpectatorName(host.UserID), packet, nil)
}

// CantSpectate forwards a follower's "missing beatmap" notice to the
// host only.
func (s *Service) CantSpectate(follower *session.Session) {
	hostSessionID := follower.Spectating()
	if hostSessionID == "" {
		return
	}
	host, ok := s.Sessions.ByID(hostSessionID)
	if !ok {
		return
	}
	host.Enqueue(wire.NewWriter().WriteI32(follower.UserID).Finish(wire.ServerSpectatorCantSpectate))
}

// HostDisconnected forcibly stops every follower of host (called on host
// logout).
func (s *Service) HostDisconnected(host *session.Session) {
	streamName := stream.SpectatorName(host.UserID)
	for _, id := range s.Streams.Members(streamName) {
		if f, ok := s.Sessions.ByID(id); ok {
			s.StopSpectating(f)
		}
	}
}
