package login

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"bancho/server/internal/chat"
	"bancho/server/internal/collab"
	"bancho/server/internal/proto"
	"bancho/server/internal/session"
	"bancho/server/internal/stream"
)

// defaultQuote is used when Config.Quotes is empty.
const defaultQuote = "Welcome back."

// Config carries the deployment-specific knobs the pipeline consults.
type Config struct {
	ServerName      string
	MinClientYear   int
	AdminChannel    string
	DefaultChannels []string // auto-joined for every account, e.g. "#osu", "#announce"
	Quotes          []string // rotated into the welcome sequence's closing notification
}

// Pipeline turns a handshake body into a live session plus the ordered
// welcome packet sequence, or a failure response with no session.
type Pipeline struct {
	Config   Config
	Sessions *session.Registry
	Streams  *stream.Registry
	Chat     *chat.Service
	Store    collab.Store
	Geo      collab.GeoLocator
}

// NewPipeline builds a login pipeline from its collaborators.
func NewPipeline(cfg Config, sessions *session.Registry, streams *stream.Registry, chatSvc *chat.Service, store collab.Store, geo collab.GeoLocator) *Pipeline {
	return &Pipeline{Config: cfg, Sessions: sessions, Streams: streams, Chat: chatSvc, Store: store, Geo: geo}
}

// Result is the outcome of a login attempt.
type Result struct {
	Session *session.Session // nil on failure
	Queued  []byte           // packets to return to the client
}

// Handle runs the full login pipeline (spec.md §4.7) against a raw
// handshake body and the client's observed IP.
func (p *Pipeline) Handle(ctx context.Context, body, remoteIP string) Result {
	start := time.Now()
	var queued []byte

	hs, err := ParseHandshake(body)
	if err != nil {
		return Result{Queued: proto.LoginFailed()}
	}

	safe := SafeUsername(hs.Username)
	user, ok, err := p.Store.UserBySafeUsername(ctx, safe)
	if err != nil || !ok {
		queued = append(queued, proto.Notification(fmt.Sprintf("%s: this user does not exist!", p.Config.ServerName))...)
		queued = append(queued, proto.LoginFailed()...)
		return Result{Queued: queued}
	}

	if user.IsBot && hs.OsuVersion != "bot_account" {
		queued = append(queued, proto.Notification("You may not log into a bot account using a real client.")...)
		queued = append(queued, proto.LoginFailed()...)
		return Result{Queued: queued}
	}

	if !collab.VerifyPassword(hs.PasswordMD5, user.PasswordBcrypt) {
		queued = append(queued, proto.Notification(fmt.Sprintf("%s: invalid password!", p.Config.ServerName))...)
		queued = append(queued, proto.LoginFailed()...)
		return Result{Queued: queued}
	}

	if user.Banned {
		return Result{Queued: proto.LoginBanned()}
	}

	firstLogin := false
	if user.Privileges&session.PrivPendingVerification != 0 {
		verified, verr := p.verifyAccount(ctx, user, hs)
		if verr != nil || !verified {
			return Result{Queued: proto.LoginBanned()}
		}
		firstLogin = true
	}
	_ = firstLogin

	restricted := session.IsRestricted(user.Privileges)

	if !user.IsBot {
		others, herr := p.Store.CountOtherAccountsSharingHardware(ctx, user.UserID, hs.UniqueID, hs.DiskID, IsWineSignature(hs.MACHash, hs.DiskID))
		if herr == nil && len(others) > 0 && !firstLogin {
			// Hardware collision on an already-active account: restrict it
			// and deny login, rather than silently letting it through.
			_ = p.Store.RestrictUser(ctx, user.UserID, "hardware match with another account")
			return Result{Queued: proto.LoginBanned()}
		}
		_ = p.Store.RecordHardware(ctx, user.UserID, hs.OsuVersion, hs.MACHash, hs.UniqueID, hs.DiskID)
	}
	_ = p.Store.RecordIP(ctx, user.UserID, remoteIP)

	if user.FrozenUntil > 0 {
		now := time.Now().Unix()
		if now < user.FrozenUntil {
			queued = append(queued, proto.Notification(fmt.Sprintf(
				"The %s staff team has requested a liveplay from you. You have until %s to comply.",
				p.Config.ServerName, time.Unix(user.FrozenUntil, 0).UTC().Format("2006-01-02 15:04:05"),
			))...)
		} else {
			queued = append(queued, proto.Notification("Your liveplay submission window has expired; your account has been restricted.")...)
			_ = p.Store.RestrictUser(ctx, user.UserID, "liveplay submission window expired")
			return Result{Queued: append(queued, proto.LoginBanned()...)}
		}
	}

	if !user.IsBot {
		if verdict := CheckCheatClient(hs.OsuVersion, p.Config.MinClientYear); verdict.Blocked {
			if restricted {
				queued = append(queued, proto.Notification("Nice try.")...)
			} else {
				_ = p.Store.RestrictUser(ctx, user.UserID, "cheat client: "+verdict.Reason)
				return Result{Queued: proto.LoginBanned()}
			}
		}
	}

	if p.Geo != nil {
		if geo, gerr := p.Geo.Lookup(ctx, remoteIP); gerr == nil {
			if user.Country == "" || user.Country == "XX" {
				_ = p.Store.UpdateUserCountry(ctx, user.UserID, geo.CountryCode)
				user.Country = geo.CountryCode
			}
		}
	}

	tournament := IsTournamentClient(hs.OsuVersion)
	sess := p.Sessions.Create(user.UserID, user.Username, user.Privileges, tournament)
	sess.Country = user.Country
	sess.TimeOffset = int32(hs.UTCOffset)
	sess.Admin = user.Privileges&(session.PrivAdmin|session.PrivModerator) != 0
	sess.BlockNonFriendPM = hs.BlockNonFriendPM
	if restricted {
		sess.Restricted.Store(true)
	}

	queued = append(queued, proto.SilenceEndNotify(int32(sess.SilencedFor()/time.Second))...)
	queued = append(queued, proto.LoginReply(user.UserID)...)
	queued = append(queued, proto.ProtocolVersion()...)
	queued = append(queued, proto.BanchoPrivileges(
		user.Privileges&session.PrivSupporter != 0,
		sess.Admin,
		user.Privileges&session.PrivTournamentStaff != 0,
	)...)
	queued = append(queued, proto.UserPresence(sess)...)
	queued = append(queued, proto.UserStats(sess)...)
	queued = append(queued, proto.ChannelInfoEnd()...)
	queued = append(queued, proto.FriendList()...)

	for _, name := range p.Config.DefaultChannels {
		p.autoJoin(sess, name)
	}
	if sess.Admin && p.Config.AdminChannel != "" {
		p.autoJoin(sess, p.Config.AdminChannel)
	}

	for _, ch := range p.Chat.Channels.PublicChannels() {
		queued = append(queued, p.Chat.ChannelInfo(ch)...)
	}

	if !restricted {
		p.Streams.Broadcast(p.Chat, stream.Main, proto.UserPresence(sess), nil)
		p.Streams.Join(stream.Main, sess.ID)
	}

	quote := defaultQuote
	if len(p.Config.Quotes) > 0 {
		quote = p.Config.Quotes[rand.Intn(len(p.Config.Quotes))]
	}
	notif := fmt.Sprintf("- Online Users: %d\n- %s", p.Sessions.Count(), quote)
	if sess.Admin {
		notif += fmt.Sprintf("\n- Elapsed: %s", time.Since(start))
	}
	queued = append(queued, proto.Notification(notif)...)

	return Result{Session: sess, Queued: queued}
}

// verifyAccount resolves a pending-verification account. When other
// accounts share its hardware, those older accounts are restricted and
// the account logging in is banned and rejected.
func (p *Pipeline) verifyAccount(ctx context.Context, user collab.UserRecord, hs Handshake) (bool, error) {
	others, err := p.Store.CountOtherAccountsSharingHardware(ctx, user.UserID, hs.UniqueID, hs.DiskID, IsWineSignature(hs.MACHash, hs.DiskID))
	if err != nil {
		return false, err
	}
	if len(others) == 0 {
		return true, nil
	}
	for _, otherID := range others {
		_ = p.Store.RestrictUser(ctx, otherID, "multi-account match with newly verified account")
	}
	_ = p.Store.BanUser(ctx, user.UserID, "multi-account detected during verification")
	return false, nil
}

// autoJoin joins sess to name without emitting the usual join-success/
// broadcast packets — the welcome sequence already carries the channel
// list, and the session itself does not need notifying of its own
// default memberships.
func (p *Pipeline) autoJoin(sess *session.Session, name string) {
	if _, ok := p.Chat.Channels.Get(name); !ok {
		return
	}
	sess.JoinChannel(name)
	p.Streams.Join(stream.ChatName(name), sess.ID)
}
