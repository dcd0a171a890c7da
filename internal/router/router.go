// Package router implements the per-request packet dispatcher: the
// HTTP-facing entry point that resolves a session from its token,
// serializes processing of a request's packet frames under the
// session's own lock, and drains the outbound queue for the response.
package router

import (
	"context"
	"log"

	"bancho/server/internal/chat"
	"bancho/server/internal/login"
	"bancho/server/internal/multiplayer"
	"bancho/server/internal/proto"
	"bancho/server/internal/session"
	"bancho/server/internal/spectator"
	"bancho/server/internal/stream"
	"bancho/server/internal/wire"
)

// Config carries the deployment knobs handlers consult directly
// (channel/session wiring is injected via the collaborator fields).
type Config struct {
	BotUsername string
	BotUserID   int32
}

// handlerFunc processes one decoded client packet. Called with the
// session's processing lock already held.
type handlerFunc func(rt *Router, sess *session.Session, payload []byte)

// Router wires every subsystem a packet handler might touch and owns
// the dispatch table built once at construction.
type Router struct {
	Config Config

	Sessions    *session.Registry
	Streams     *stream.Registry
	Chat        *chat.Service
	Spectator   *spectator.Service
	Multiplayer *multiplayer.Service
	Login       *login.Pipeline

	handlers map[uint16]handlerFunc
}

// NewRouter builds a Router and its dispatch table.
func NewRouter(cfg Config, sessions *session.Registry, streams *stream.Registry, chatSvc *chat.Service, spec *spectator.Service, mp *multiplayer.Service, loginPipeline *login.Pipeline) *Router {
	rt := &Router{
		Config:      cfg,
		Sessions:    sessions,
		Streams:     streams,
		Chat:        chatSvc,
		Spectator:   spec,
		Multiplayer: mp,
		Login:       loginPipeline,
	}
	rt.handlers = buildHandlers()
	return rt
}

// HandleRequest implements the protocol's single HTTP endpoint: with no
// token, the body is a login handshake; otherwise the body is a
// sequence of framed packets to process against the named session.
// Returns the token and raw body to send back to the client.
func (rt *Router) HandleRequest(ctx context.Context, token string, body []byte, remoteIP string) (string, []byte) {
	if token == "" {
		result := rt.Login.Handle(ctx, string(body), remoteIP)
		if result.Session == nil {
			return "", result.Queued
		}
		return result.Session.ID, result.Queued
	}

	sess, ok := rt.Sessions.ByID(token)
	if !ok {
		resp := append(proto.ServerRestart(0), proto.Notification("Server has restarted; please log in again.")...)
		return token, resp
	}

	sess.Lock()
	frames, ferr := wire.ReadAllFrames(body)
	restricted := sess.Restricted.Load()
	for _, f := range frames {
		if f.ID == wire.ClientPong {
			continue
		}
		if restricted && !wire.RestrictedAllowList[f.ID] {
			continue
		}
		h, known := rt.handlers[f.ID]
		if !known {
			log.Printf("router: unknown packet id %d from %s", f.ID, sess.Username)
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("router: handler for packet id %d panicked for %s: %v", f.ID, sess.Username, r)
				}
			}()
			h(rt, sess, f.Payload)
		}()
	}
	sess.Touch()
	resp := sess.FetchQueue()
	kicked := sess.IsKicked()
	sess.Unlock()

	if ferr != nil {
		log.Printf("router: malformed frame from %s: %v", sess.Username, ferr)
		resp = append(resp, proto.ServerRestart(0)...)
		resp = append(resp, proto.Notification("Your client sent a malformed packet; reconnecting.")...)
	}

	if kicked {
		rt.Disconnect(sess)
	}
	return sess.ID, resp
}

// Disconnect tears a session down completely: stop spectating it and
// anyone spectating it, leave its match, part every joined channel,
// leave main/lobby, remove it from the registry, and announce its
// departure. Shared by self-logout (via MarkKicked), external kick,
// idle-timeout eviction, and the pub/sub "disconnect"/"ban" channels.
func (rt *Router) Disconnect(sess *session.Session) {
	rt.Spectator.HostDisconnected(sess)
	if sess.Spectating() != "" {
		rt.Spectator.StopSpectating(sess)
	}
	if mid := sess.MatchID(); mid != -1 {
		if m, ok := rt.Multiplayer.Matches.Get(mid); ok {
			rt.Multiplayer.Leave(sess, m)
		}
	}
	for _, name := range sess.JoinedChannels() {
		rt.Chat.Part(sess, name, false)
	}
	rt.Streams.Leave(stream.Main, sess.ID)
	rt.Streams.Leave(stream.Lobby, sess.ID)
	rt.Sessions.Delete(sess.ID)

	if !sess.Restricted.Load() {
		rt.Streams.Broadcast(rt.Chat, stream.Main, proto.UserLogout(sess.UserID), nil)
	}
}
