package chat

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"bancho/server/internal/session"
	"bancho/server/internal/stream"
	"bancho/server/internal/wire"
)

var (
	ErrChannelNotFound = errors.New("chat: channel not found")
	ErrNotJoined       = errors.New("chat: not joined")
	ErrNoWriteAccess   = errors.New("chat: no write access")
)

// SpamConfig controls the rate-limit-based silence mechanism (spec.md
// §4.4 / Open Questions: 10 messages / 10s window / 10 minute silence,
// configurable).
type SpamConfig struct {
	Limit      rate.Limit
	Burst      int
	SilenceFor time.Duration
}

// DefaultSpamConfig matches the Open Questions resolution in DESIGN.md.
var DefaultSpamConfig = SpamConfig{
	Limit:      rate.Every(time.Second),
	Burst:      10,
	SilenceFor: 10 * time.Minute,
}

// Bot answers "!"-prefixed commands. Implemented by the bot collaborator.
type Bot interface {
	// Respond returns a reply string, or "" if the bot has nothing to say.
	Respond(fromUsername, channelOrUser, message string) string
}

// Sessions is the subset of session.Registry the chat service needs.
type Sessions interface {
	ByID(id string) (*session.Session, bool)
	ByUserID(userID int32) (*session.Session, bool)
}

// Service wires channels, streams, sessions, and the bot together.
type Service struct {
	Channels *Registry
	Streams  *stream.Registry
	Sessions Sessions
	Bot      Bot
	Spam     SpamConfig

	limiters limiterMap
}

type limiterMap struct {
	get func(sessionID string) *rate.Limiter
}

// NewService constructs a chat Service. getLimiter supplies (and caches)
// a per-session rate.Limiter; the router wiring owns that cache so it
// can be torn down alongside the session.
func NewService(channels *Registry, streams *stream.Registry, sessions Sessions, bot Bot, getLimiter func(string) *rate.Limiter) *Service {
	return &Service{
		Channels: channels,
		Streams:  streams,
		Sessions: sessions,
		Bot:      bot,
		Spam:     DefaultSpamConfig,
		limiters: limiterMap{get: getLimiter},
	}
}

// SendTo implements stream.Sender by enqueueing on the named session if
// it is still registered.
func (s *Service) SendTo(sessionID string, b []byte) {
	if sess, ok := s.Sessions.ByID(sessionID); ok {
		sess.Enqueue(b)
	}
}

// Join adds sess to the named channel's stream and its joined set,
// returning the channel-info packet to broadcast to all members.
func (s *Service) Join(sess *session.Session, channelName string) ([]byte, []byte, error) {
	ch, ok := s.Channels.Get(channelName)
	if !ok {
		return nil, nil, ErrChannelNotFound
	}
	if sess.Privileges&ch.MinPrivileges != ch.MinPrivileges {
		return nil, nil, ErrNoWriteAccess
	}
	streamName := stream.ChatName(channelName)
	s.Streams.Join(streamName, sess.ID)
	sess.JoinChannel(channelName)

	joinPacket := wire.NewWriter().WriteString(channelName).Finish(wire.ServerChannelJoinSuccess)
	info := s.channelInfoPacket(ch)
	return joinPacket, info, nil
}

// Part removes sess from the channel. If forced, the session additionally
// receives a "kicked from channel" packet.
func (s *Service) Part(sess *session.Session, channelName string, forced bool) []byte {
	streamName := stream.ChatName(channelName)
	s.Streams.Leave(streamName, sess.ID)
	sess.PartChannel(channelName)

	if forced {
		return wire.NewWriter().WriteString(channelName).Finish(wire.ServerChannelKicked)
	}
	return nil
}

// channelInfoPacket builds a channel-info packet whose user count equals
// the backing stream's current membership.
func (s *Service) channelInfoPacket(ch *Channel) []byte {
	count := int32(len(s.Streams.Members(stream.ChatName(ch.Name))))
	return wire.NewWriter().
		WriteString(ch.Name).
		WriteString(ch.Description).
		WriteI16(int16(count)).
		Finish(wire.ServerChannelInfo)
}

// ChannelInfoEnd returns the channelInfoEnd marker packet.
func ChannelInfoEnd() []byte { return wire.Simple(wire.ServerChannelInfoEnd) }

// ChannelInfo exposes channelInfoPacket for callers (e.g. the login
// welcome sequence) that need a channel's info packet without joining it.
func (s *Service) ChannelInfo(ch *Channel) []byte { return s.channelInfoPacket(ch) }

// SendPublic handles an inbound public message from sess to #channelName.
// Returns packets to deliver back to sess (a silence notice when sess is
// silenced, or the silenced packet when this message trips the spam
// limit), and an error for rejected sends (never mutates state on error).
// Bot replies are broadcast to the channel rather than returned.
func (s *Service) SendPublic(sess *session.Session, channelName, message string) ([]byte, error) {
	if d := sess.SilencedFor(); d > 0 {
		return wire.NewWriter().WriteString(formatSilenceNotice(d)).Finish(wire.ServerNotification), nil
	}

	ch, ok := s.Channels.Get(channelName)
	if !ok {
		return nil, ErrChannelNotFound
	}
	if !sess.InChannel(channelName) || !ch.PublicWrite {
		return nil, ErrNoWriteAccess
	}

	if s.overSpamLimit(sess) {
		sess.Silence(s.Spam.SilenceFor)
		return wire.NewWriter().WriteString("Message blocked. You are now silenced.").Finish(wire.ServerUserSilenced), nil
	}

	packet := wire.NewWriter().
		WriteString(sess.Username).
		WriteString(message).
		WriteString(channelName).
		WriteI32(sess.UserID).
		Finish(wire.ServerSendMessage)

	excl := map[string]struct{}{sess.ID: {}}
	s.Streams.Broadcast(s, stream.ChatName(channelName), packet, excl)

	if reply := s.dispatchBot(sess, channelName, message); reply != "" {
		replyPacket := wire.NewWriter().
			WriteString(botName(s.Bot)).
			WriteString(reply).
			WriteString(channelName).
			WriteI32(0).
			Finish(wire.ServerSendMessage)
		s.Streams.Broadcast(s, stream.ChatName(channelName), replyPacket, nil)
	}
	return nil, nil
}

// SendPrivate handles a direct message from sess to the user named
// toUsername. If the recipient has an away message set, a reply carrying
// it is returned for enqueueing back to sess.
func (s *Service) SendPrivate(sess *session.Session, toUserID int32, toUsername, message string, awayMessage string) []byte {
	if d := sess.SilencedFor(); d > 0 {
		return nil
	}
	target, ok := s.Sessions.ByUserID(toUserID)
	if !ok {
		return nil
	}
	if target.SilencedFor() > 0 {
		return wire.NewWriter().WriteString(toUsername).Finish(wire.ServerTargetIsSilenced)
	}
	if target.BlockNonFriendPM {
		return wire.NewWriter().WriteString(toUsername).Finish(wire.ServerUserDMsBlocked)
	}
	packet := wire.NewWriter().
		WriteString(sess.Username).
		WriteString(message).
		WriteString(toUsername).
		WriteI32(sess.UserID).
		Finish(wire.ServerSendMessage)
	target.Enqueue(packet)

	if awayMessage != "" {
		return wire.NewWriter().
			WriteString(toUsername).
			WriteString(awayMessage).
			WriteString(toUsername).
			WriteI32(toUserID).
			Finish(wire.ServerSendMessage)
	}

	if reply := s.dispatchBot(sess, toUsername, message); reply != "" {
		return wire.NewWriter().
			WriteString(botName(s.Bot)).
			WriteString(reply).
			WriteString(sess.Username).
			WriteI32(0).
			Finish(wire.ServerSendMessage)
	}
	return nil
}

func (s *Service) dispatchBot(sess *session.Session, target, message string) string {
	if s.Bot == nil || len(message) == 0 || message[0] != '!' {
		return ""
	}
	return s.Bot.Respond(sess.Username, target, message)
}

func (s *Service) overSpamLimit(sess *session.Session) bool {
	if s.limiters.get == nil {
		return false
	}
	l := s.limiters.get(sess.ID)
	return !l.Allow()
}

func formatSilenceNotice(d time.Duration) string {
	return fmt.Sprintf("You are silenced for another %d seconds.", int(d.Seconds())+1)
}

func botName(b Bot) string {
	if named, ok := b.(interface{ Name() string }); ok {
		return named.Name()
	}
	return "BanchoBot"
}
