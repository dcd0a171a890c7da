// Package pubsub implements the long-running bridge between the
// external cache/bus and live sessions: reacting to out-of-band events
// (an admin restricting a user, a stats recalculation finishing
// elsewhere, a scheduled silence) by mutating the matching session and
// enqueueing the packet that announces the change.
package pubsub

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"bancho/server/internal/chat"
	"bancho/server/internal/collab"
	"bancho/server/internal/proto"
	"bancho/server/internal/session"
	"bancho/server/internal/stream"
	"bancho/server/internal/wire"
)

// Channels enumerates every bus channel the bridge reacts to.
var Channels = []string{
	"disconnect",
	"reload_settings",
	"update_cached_stats",
	"silence",
	"ban",
	"notification",
	"refresh_privs",
	"bot_msg",
}

// Sessions is the subset of session.Registry the bridge needs.
type Sessions interface {
	ByID(id string) (*session.Session, bool)
	ByUserID(userID int32) (*session.Session, bool)
}

// Disconnector tears a session down fully; implemented by
// *router.Router so the bridge can share the same teardown path as
// self-logout and idle-timeout eviction without importing router
// (which already imports session/stream/chat — an import of pubsub
// back into router would cycle).
type Disconnector interface {
	Disconnect(sess *session.Session)
}

// Config carries the bot identity used to build bot_msg packets.
type Config struct {
	BotUsername string
	BotUserID   int32
}

// Bridge owns the long-running subscription to Channels.
type Bridge struct {
	Config       Config
	Bus          collab.Bus
	Sessions     Sessions
	Disconnector Disconnector
	Store        collab.Store
	Streams      *stream.Registry
	Chat         *chat.Service
}

// NewBridge constructs a Bridge from its collaborators.
func NewBridge(cfg Config, bus collab.Bus, sessions Sessions, disc Disconnector, store collab.Store, streams *stream.Registry, chatSvc *chat.Service) *Bridge {
	return &Bridge{Config: cfg, Bus: bus, Sessions: sessions, Disconnector: disc, Store: store, Streams: streams, Chat: chatSvc}
}

// Run blocks subscribing to Channels until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	return b.Bus.Subscribe(ctx, Channels, func(channel, payload string) {
		b.handle(ctx, channel, payload)
	})
}

func (b *Bridge) handle(ctx context.Context, channel, payload string) {
	switch channel {
	case "disconnect":
		b.handleDisconnect(payload)
	case "ban":
		b.handleBan(payload)
	case "silence":
		b.handleSilence(payload)
	case "notification":
		b.handleNotification(payload)
	case "update_cached_stats":
		b.handleUpdateCachedStats(ctx, payload)
	case "refresh_privs":
		b.handleRefreshPrivs(ctx, payload)
	case "bot_msg":
		b.handleBotMsg(payload)
	case "reload_settings":
		log.Printf("pubsub: reload_settings received (no reloadable settings wired)")
	default:
		log.Printf("pubsub: unknown channel %q", channel)
	}
}

type userIDPayload struct {
	UserID int32 `json:"userID"`
}

func (b *Bridge) handleDisconnect(payload string) {
	var p userIDPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		log.Printf("pubsub: malformed disconnect payload: %v", err)
		return
	}
	if sess, ok := b.Sessions.ByUserID(p.UserID); ok {
		b.Disconnector.Disconnect(sess)
	}
}

func (b *Bridge) handleBan(payload string) {
	var p userIDPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		log.Printf("pubsub: malformed ban payload: %v", err)
		return
	}
	sess, ok := b.Sessions.ByUserID(p.UserID)
	if !ok {
		return
	}
	sess.Enqueue(proto.AccountRestricted())
	b.Disconnector.Disconnect(sess)
}

type silencePayload struct {
	UserID  int32 `json:"userID"`
	Seconds int32 `json:"seconds"`
}

func (b *Bridge) handleSilence(payload string) {
	var p silencePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		log.Printf("pubsub: malformed silence payload: %v", err)
		return
	}
	sess, ok := b.Sessions.ByUserID(p.UserID)
	if !ok {
		return
	}
	sess.Silence(time.Duration(p.Seconds) * time.Second)
	sess.Enqueue(proto.SilenceEndNotify(p.Seconds))
}

type notificationPayload struct {
	UserID  int32  `json:"userID"`
	Message string `json:"message"`
}

func (b *Bridge) handleNotification(payload string) {
	var p notificationPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		log.Printf("pubsub: malformed notification payload: %v", err)
		return
	}
	sess, ok := b.Sessions.ByUserID(p.UserID)
	if !ok {
		return
	}
	sess.Enqueue(proto.Notification(p.Message))
}

type statsPayload struct {
	UserID int32 `json:"userID"`
	Mode   uint8 `json:"mode"`
}

func (b *Bridge) handleUpdateCachedStats(ctx context.Context, payload string) {
	var p statsPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		log.Printf("pubsub: malformed update_cached_stats payload: %v", err)
		return
	}
	sess, ok := b.Sessions.ByUserID(p.UserID)
	if !ok {
		return
	}
	st, err := b.Store.StatsFor(ctx, p.UserID, p.Mode)
	if err != nil {
		log.Printf("pubsub: failed to refresh stats for user %d: %v", p.UserID, err)
		return
	}
	sess.SetStats(session.Stats{
		RankedScore: st.RankedScore,
		Accuracy:    st.Accuracy,
		Playcount:   st.Playcount,
		TotalScore:  st.TotalScore,
		Rank:        st.Rank,
		PP:          int16(st.PP),
	})
	sess.Enqueue(proto.UserStats(sess))
}

func (b *Bridge) handleRefreshPrivs(ctx context.Context, payload string) {
	var p userIDPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		log.Printf("pubsub: malformed refresh_privs payload: %v", err)
		return
	}
	sess, ok := b.Sessions.ByUserID(p.UserID)
	if !ok {
		return
	}
	rec, found, err := b.Store.UserByID(ctx, p.UserID)
	if err != nil || !found {
		return
	}
	sess.Privileges = rec.Privileges
	sess.Admin = rec.Privileges&(session.PrivAdmin|session.PrivModerator) != 0
	sess.Restricted.Store(session.IsRestricted(rec.Privileges))
	sess.Enqueue(proto.BanchoPrivileges(
		rec.Privileges&session.PrivSupporter != 0,
		sess.Admin,
		rec.Privileges&session.PrivTournamentStaff != 0,
	))
}

type botMsgPayload struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (b *Bridge) handleBotMsg(payload string) {
	var p botMsgPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		log.Printf("pubsub: malformed bot_msg payload: %v", err)
		return
	}
	if _, ok := b.Chat.Channels.Get(p.Channel); !ok {
		log.Printf("pubsub: bot_msg for unknown channel %q", p.Channel)
		return
	}
	packet := wire.NewWriter().
		WriteString(b.Config.BotUsername).
		WriteString(p.Message).
		WriteString(p.Channel).
		WriteI32(b.Config.BotUserID).
		Finish(wire.ServerSendMessage)
	b.Streams.Broadcast(b.Chat, stream.ChatName(p.Channel), packet, nil)
}
