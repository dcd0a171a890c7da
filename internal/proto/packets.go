// Package proto builds the small set of server-to-client packets that
// more than one component needs to emit: presence/stats broadcasts,
// notifications, and session lifecycle markers. Packets specific to a
// single subsystem (chat, spectator, multiplayer) are built locally in
// that subsystem instead.
package proto

import (
	"bancho/server/internal/session"
	"bancho/server/internal/wire"
)

// userRank bit values for the legacy username-colour field.
const (
	rankNormal    = 1
	rankMod       = 2
	rankSupporter = 4
	rankAdmin     = 8
)

// UserPresence builds the userPanel packet describing s.
func UserPresence(s *session.Session) []byte {
	w := wire.NewWriter()
	w.WriteI32(s.UserID)
	w.WriteString(s.Username)
	w.WriteU8(uint8(24 + s.TimeOffset))
	w.WriteU8(countryCode(s.Country))
	w.WriteU8(userRank(s))
	w.WriteF32(s.Longitude)
	w.WriteF32(s.Latitude)
	w.WriteI32(s.GetStats().Rank)
	return w.Finish(wire.ServerUserPanel)
}

// UserStats builds the userStats packet describing s, substituting PP
// for ranked score when PP exceeds the int16 range the wire format
// allows, matching the upstream rx/relax convention.
func UserStats(s *session.Session) []byte {
	action := s.GetAction()
	stats := s.GetStats()

	rankedScore := stats.RankedScore
	pp := int16(stats.PP)
	if stats.PP >= 32767 {
		rankedScore = int64(stats.PP)
		pp = 0
	}

	w := wire.NewWriter()
	w.WriteI32(s.UserID)
	w.WriteU8(action.Kind)
	w.WriteString(action.Text)
	w.WriteString(action.BeatmapMD5)
	w.WriteI32(int32(action.Mods))
	w.WriteU8(uint8(action.Mode))
	w.WriteI32(action.BeatmapID)
	w.WriteI64(rankedScore)
	w.WriteF32(float32(stats.Accuracy))
	w.WriteI32(stats.Playcount)
	w.WriteI64(stats.TotalScore)
	w.WriteI32(stats.Rank)
	w.WriteI16(pp)
	return w.Finish(wire.ServerUserStats)
}

func userRank(s *session.Session) uint8 {
	switch {
	case s.Admin:
		return rankAdmin
	case s.Privileges&session.PrivSupporter != 0:
		return rankSupporter
	default:
		return rankNormal
	}
}

// countryCode maps an ISO country string to the legacy numeric id the
// client expects; unknown codes map to 0 ("XX"-equivalent).
func countryCode(iso string) uint8 {
	idx, ok := countryIndex[iso]
	if !ok {
		return 0
	}
	return idx
}

// Notification builds a notification packet carrying message.
func Notification(message string) []byte {
	w := wire.NewWriter()
	w.WriteString(message)
	return w.Finish(wire.ServerNotification)
}

// LoginReply builds the login-reply packet; userID is positive on
// success, or a small negative code on failure (see LoginFailed/
// LoginBanned helpers below).
func LoginReply(userID int32) []byte {
	w := wire.NewWriter()
	w.WriteI32(userID)
	return w.Finish(wire.ServerUserID)
}

// Login failure/ban codes, matching the upstream negative-userID
// convention.
const (
	loginCodeFailed  int32 = -1
	loginCodeBanned  int32 = -3
	loginCodeRestart int32 = -6
)

// LoginFailed builds the generic login-rejected reply.
func LoginFailed() []byte { return LoginReply(loginCodeFailed) }

// LoginBanned builds the login-rejected-for-ban reply.
func LoginBanned() []byte { return LoginReply(loginCodeBanned) }

// LoginServerRestarting builds the login-rejected-for-restart reply.
func LoginServerRestarting() []byte { return LoginReply(loginCodeRestart) }

// ProtocolVersion builds the protocol-version packet (fixed at 19).
func ProtocolVersion() []byte {
	w := wire.NewWriter()
	w.WriteI32(19)
	return w.Finish(wire.ServerProtocolVersion)
}

// BanchoPrivileges builds the privilege-bitmask packet for the welcome
// sequence: player bit always set, plus moderator/admin/peppy/supporter
// bits as applicable.
func BanchoPrivileges(supporter, admin, tournamentStaff bool) []byte {
	var priv int32 = 1 // player
	if supporter {
		priv |= 4
	}
	if admin {
		priv |= 2 | 8 // mod + admin, matching the upstream GMT shortcut
	}
	if tournamentStaff {
		priv |= 32
	}
	w := wire.NewWriter()

	// NOTE: this bitmask is the *client-facing* bancho-privileges
	// packet layout (player/mod/supporter/admin/...), distinct from
	// session.Priv* which is the server's own internal privilege set.
	w.WriteI32(priv)
	return w.Finish(wire.ServerPrivileges)
}

// SilenceEndNotify builds the remaining-silence-seconds packet sent at
// the start of every welcome sequence, zero when not silenced.
func SilenceEndNotify(secondsLeft int32) []byte {
	w := wire.NewWriter()
	w.WriteI32(secondsLeft)
	return w.Finish(wire.ServerSilenceEnd)
}

// FriendList builds the friend-list packet. Friends are not modeled as
// a first-class relation in this server; the list is always empty,
// matching a fresh deployment with no imported social graph.
func FriendList() []byte {
	w := wire.NewWriter()
	w.WriteIntList(nil)
	return w.Finish(wire.ServerFriendsList)
}

// ChannelInfoEnd marks the end of the channel-info burst in the
// welcome sequence.
func ChannelInfoEnd() []byte { return wire.Simple(wire.ServerChannelInfoEnd) }

// ServerRestart builds the scheduled-restart packet, msUntilReconnect
// being the client's instructed backoff before retrying.
func ServerRestart(msUntilReconnect int32) []byte {
	w := wire.NewWriter()
	w.WriteI32(msUntilReconnect)
	return w.Finish(wire.ServerRestart)
}

// AccountRestricted builds the packet informing a session it has just
// been placed into restricted mode.
func AccountRestricted() []byte { return wire.Simple(wire.ServerAccountRestricted) }

// UserLogout builds the packet announcing a user's disconnection.
func UserLogout(userID int32) []byte {
	w := wire.NewWriter()
	w.WriteI32(userID)
	w.WriteU8(0)
	return w.Finish(wire.ServerUserLogout)
}
