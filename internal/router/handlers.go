package router

import (
	"context"
	"fmt"
	"log"

	"bancho/server/internal/chat"
	"bancho/server/internal/multiplayer"
	"bancho/server/internal/proto"
	"bancho/server/internal/session"
	"bancho/server/internal/stream"
	"bancho/server/internal/wire"
)

// buildHandlers returns the packet-id dispatch table, built once at
// Router construction.
func buildHandlers() map[uint16]handlerFunc {
	return map[uint16]handlerFunc{
		wire.ClientChangeAction:                handleChangeAction,
		wire.ClientSendPublicMessage:            handleSendPublicMessage,
		wire.ClientLogout:                       handleLogout,
		wire.ClientRequestStatusUpdate:          handleRequestStatusUpdate,
		wire.ClientStartSpectating:              handleStartSpectating,
		wire.ClientStopSpectating:               handleStopSpectating,
		wire.ClientSpectateFrames:               handleSpectateFrames,
		wire.ClientErrorReport:                  handleErrorReport,
		wire.ClientCantSpectate:                 handleCantSpectate,
		wire.ClientSendPrivateMessage:           handleSendPrivateMessage,
		wire.ClientPartLobby:                    handlePartLobby,
		wire.ClientJoinLobby:                    handleJoinLobby,
		wire.ClientCreateMatch:                  handleCreateMatch,
		wire.ClientJoinMatch:                    handleJoinMatch,
		wire.ClientPartMatch:                    handlePartMatch,
		wire.ClientMatchChangeSlot:              handleMatchChangeSlot,
		wire.ClientMatchReady:                   handleMatchReady,
		wire.ClientMatchLock:                    handleMatchLock,
		wire.ClientMatchChangeSettings:          handleMatchChangeSettings,
		wire.ClientMatchStart:                   handleMatchStart,
		wire.ClientMatchScoreUpdate:             handleMatchScoreUpdate,
		wire.ClientMatchComplete:                handleMatchComplete,
		wire.ClientMatchChangeMods:              handleMatchChangeMods,
		wire.ClientMatchLoadComplete:            handleMatchLoadComplete,
		wire.ClientMatchNoBeatmap:                handleMatchNoBeatmap,
		wire.ClientMatchNotReady:                handleMatchNotReady,
		wire.ClientMatchFailed:                  handleMatchFailed,
		wire.ClientMatchHasBeatmap:              handleMatchHasBeatmap,
		wire.ClientMatchSkipRequest:             handleMatchSkipRequest,
		wire.ClientChannelJoin:                  handleChannelJoin,
		wire.ClientBeatmapInfoRequest:           handleBeatmapInfoRequest,
		wire.ClientMatchTransferHost:            handleMatchTransferHost,
		wire.ClientFriendAdd:                    handleFriendAdd,
		wire.ClientFriendRemove:                 handleFriendRemove,
		wire.ClientMatchChangeTeam:              handleMatchChangeTeam,
		wire.ClientChannelPart:                  handleChannelPart,
		wire.ClientReceiveUpdates:               handleReceiveUpdates,
		wire.ClientSetAwayMessage:               handleSetAwayMessage,
		wire.ClientUserStatsRequest:             handleUserStatsRequest,
		wire.ClientMatchInvite:                  handleMatchInvite,
		wire.ClientMatchChangePassword:          handleMatchChangePassword,
		wire.ClientTournamentMatchInfoRequest:   handleTournamentMatchInfoRequest,
		wire.ClientUserPanelRequest:             handleUserPanelRequest,
		wire.ClientTournamentJoinMatchChannel:   handleTournamentJoinMatchChannel,
		wire.ClientTournamentLeaveMatchChannel:  handleTournamentLeaveMatchChannel,
	}
}

// matchOf returns the match sess currently occupies, if any.
func matchOf(rt *Router, sess *session.Session) (*multiplayer.Match, bool) {
	id := sess.MatchID()
	if id < 0 {
		return nil, false
	}
	return rt.Multiplayer.Matches.Get(id)
}

// spectatorChannelName returns the chat channel backing a host's
// spectator chat, joined by the host and every follower (spec.md §4.5).
func spectatorChannelName(hostUserID int32) string {
	return fmt.Sprintf("#spec_%d", hostUserID)
}

// ensureChannel installs name in the channel registry if not already
// present, idempotently.
func ensureChannel(rt *Router, name string, hidden bool) {
	if _, ok := rt.Chat.Channels.Get(name); ok {
		return
	}
	rt.Chat.Channels.Add(&chat.Channel{Name: name, PublicRead: true, PublicWrite: true, Hidden: hidden})
}

// joinChannelIfNeeded joins sess to name unless already a member,
// enqueueing the join-success and channel-info packets to sess.
func joinChannelIfNeeded(rt *Router, sess *session.Session, name string) {
	if sess.InChannel(name) {
		return
	}
	joinPkt, infoPkt, err := rt.Chat.Join(sess, name)
	if err != nil {
		return
	}
	sess.Enqueue(joinPkt)
	sess.Enqueue(infoPkt)
}

// broadcastChannelInfo re-sends a channel's member-count packet to
// everyone currently joined, e.g. after a join/part changes the count.
func broadcastChannelInfo(rt *Router, name string) {
	ch, ok := rt.Chat.Channels.Get(name)
	if !ok {
		return
	}
	rt.Streams.Broadcast(rt.Chat, stream.ChatName(name), rt.Chat.ChannelInfo(ch), nil)
}

func handleChangeAction(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	kind, err := r.ReadU8()
	if err != nil {
		return
	}
	text, err := r.ReadString()
	if err != nil {
		return
	}
	md5, err := r.ReadString()
	if err != nil {
		return
	}
	mods, err := r.ReadU32()
	if err != nil {
		return
	}
	mode, err := r.ReadU8()
	if err != nil {
		return
	}
	beatmapID, err := r.ReadI32()
	if err != nil {
		return
	}
	sess.SetAction(session.Action{
		Kind:       kind,
		Text:       text,
		BeatmapMD5: md5,
		Mods:       mods,
		Mode:       session.Mode(mode),
		BeatmapID:  beatmapID,
	})
	if !sess.Restricted.Load() {
		excl := map[string]struct{}{sess.ID: {}}
		rt.Streams.Broadcast(rt.Chat, stream.Main, proto.UserStats(sess), excl)
	}
}

func handleSendPublicMessage(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	if _, err := r.ReadString(); err != nil { // sender name, echoed by client, ignored
		return
	}
	message, err := r.ReadString()
	if err != nil {
		return
	}
	channelName, err := r.ReadString()
	if err != nil {
		return
	}
	notice, err := rt.Chat.SendPublic(sess, channelName, message)
	if err != nil {
		return
	}
	if notice != nil {
		sess.Enqueue(notice)
	}
}

func handleLogout(rt *Router, sess *session.Session, payload []byte) {
	sess.MarkKicked()
}

func handleRequestStatusUpdate(rt *Router, sess *session.Session, payload []byte) {
	sess.Enqueue(proto.UserStats(sess))
}

func handleStartSpectating(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	hostUserID, err := r.ReadI32()
	if err != nil {
		return
	}
	rt.Spectator.StartSpectating(sess, hostUserID)

	channelName := spectatorChannelName(hostUserID)
	ensureChannel(rt, channelName, true)
	if host, ok := rt.Sessions.ByUserID(hostUserID); ok {
		joinChannelIfNeeded(rt, host, channelName)
	}
	joinChannelIfNeeded(rt, sess, channelName)
}

func handleStopSpectating(rt *Router, sess *session.Session, payload []byte) {
	hostSessionID := sess.Spectating()
	var channelName string
	if host, ok := rt.Sessions.ByID(hostSessionID); ok {
		channelName = spectatorChannelName(host.UserID)
	}
	rt.Spectator.StopSpectating(sess)
	if channelName != "" {
		rt.Chat.Part(sess, channelName, false)
	}
}

func handleSpectateFrames(rt *Router, sess *session.Session, payload []byte) {
	rt.Spectator.RelayFrames(sess, payload)
}

func handleErrorReport(rt *Router, sess *session.Session, payload []byte) {
	log.Printf("router: client error report from %s (%d bytes)", sess.Username, len(payload))
}

func handleCantSpectate(rt *Router, sess *session.Session, payload []byte) {
	rt.Spectator.CantSpectate(sess)
}

func handleSendPrivateMessage(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	if _, err := r.ReadString(); err != nil { // sender name, ignored
		return
	}
	message, err := r.ReadString()
	if err != nil {
		return
	}
	to, err := r.ReadString()
	if err != nil {
		return
	}
	if _, err := r.ReadU32(); err != nil { // unused
		return
	}

	if d := sess.SilencedFor(); d > 0 {
		return
	}

	if to == rt.Config.BotUsername {
		if rt.Chat.Bot == nil {
			return
		}
		reply := rt.Chat.Bot.Respond(sess.Username, to, message)
		if reply == "" {
			return
		}
		pkt := wire.NewWriter().
			WriteString(rt.Config.BotUsername).
			WriteString(reply).
			WriteString(sess.Username).
			WriteI32(rt.Config.BotUserID).
			Finish(wire.ServerSendMessage)
		sess.Enqueue(pkt)
		return
	}

	target, ok := rt.Sessions.ByUsername(to)
	if !ok {
		return
	}
	reply := rt.Chat.SendPrivate(sess, target.UserID, to, message, target.AwayMessage())
	if reply != nil {
		sess.Enqueue(reply)
	}
}

func handlePartLobby(rt *Router, sess *session.Session, payload []byte) {
	rt.Streams.Leave(stream.Lobby, sess.ID)
}

func handleJoinLobby(rt *Router, sess *session.Session, payload []byte) {
	rt.Streams.Join(stream.Lobby, sess.ID)
	for _, m := range rt.Multiplayer.Matches.All() {
		sess.Enqueue(rt.Multiplayer.LobbyMatchPacket(m))
	}
}

func handleCreateMatch(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	cfg, password, err := parseMatchSettings(r)
	if err != nil {
		return
	}
	if cfg.Name == "" {
		sess.Enqueue(proto.Notification("Match name cannot be empty."))
		return
	}

	m := rt.Multiplayer.Create(sess, cfg.Name, password, cfg.BeatmapID, cfg.BeatmapName, cfg.BeatmapMD5, cfg.Mode)
	_ = rt.Multiplayer.ChangeSettings(sess, m, cfg)

	sess.Enqueue(rt.Multiplayer.JoinSuccessPacket(m))

	channelName := multiplayer.MatchChannelName(m.ID)
	welcome := wire.NewWriter().
		WriteString(rt.Config.BotUsername).
		WriteString(fmt.Sprintf("Welcome to %s's multiplayer match!", sess.Username)).
		WriteString(channelName).
		WriteI32(rt.Config.BotUserID).
		Finish(wire.ServerSendMessage)
	tip := wire.NewWriter().
		WriteString(rt.Config.BotUsername).
		WriteString("This match can be switched to PP-based scoring by its host; see the server's help channel for details.").
		WriteString(channelName).
		WriteI32(rt.Config.BotUserID).
		Finish(wire.ServerSendMessage)
	rt.Streams.Broadcast(rt.Chat, stream.ChatName(channelName), welcome, nil)
	rt.Streams.Broadcast(rt.Chat, stream.ChatName(channelName), tip, nil)
}

func handleJoinMatch(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	matchID, err := r.ReadU32()
	if err != nil {
		return
	}
	password, err := r.ReadString()
	if err != nil {
		return
	}
	m, ok := rt.Multiplayer.Matches.Get(int32(matchID))
	if !ok {
		return
	}
	if err := rt.Multiplayer.Join(sess, m, password); err != nil {
		if err == multiplayer.ErrWrongPassword {
			sess.Enqueue(wire.Simple(wire.ServerMatchJoinFail))
			log.Printf("router: %s gave wrong password for match %d", sess.Username, m.ID)
		}
		if err == multiplayer.ErrAlreadyInMatch {
			sess.Enqueue(wire.Simple(wire.ServerMatchJoinFail))
		}
		return
	}
	sess.Enqueue(rt.Multiplayer.JoinSuccessPacket(m))
}

func handlePartMatch(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		rt.Multiplayer.Leave(sess, m)
	}
}

func handleMatchChangeSlot(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	slotID, err := r.ReadU32()
	if err != nil {
		return
	}
	m, ok := matchOf(rt, sess)
	if !ok {
		return
	}
	_ = rt.Multiplayer.ChangeSlot(sess, m, int(slotID))
}

func handleMatchReady(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		_ = rt.Multiplayer.SetSlotStatus(sess, m, multiplayer.SlotReady)
	}
}

func handleMatchLock(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	slotID, err := r.ReadU32()
	if err != nil {
		return
	}
	m, ok := matchOf(rt, sess)
	if !ok {
		return
	}
	_ = rt.Multiplayer.ToggleLock(sess, m, int(slotID))
}

func handleMatchChangeSettings(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	cfg, _, err := parseMatchSettings(r)
	if err != nil {
		return
	}
	m, ok := matchOf(rt, sess)
	if !ok {
		return
	}
	_ = rt.Multiplayer.ChangeSettings(sess, m, cfg)
}

func handleMatchStart(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		_ = rt.Multiplayer.Start(sess, m)
	}
}

func handleMatchScoreUpdate(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	frame, err := parseScoreFrame(r)
	if err != nil {
		return
	}
	if m, ok := matchOf(rt, sess); ok {
		rt.Multiplayer.UpdateScore(sess, m, frame)
	}
}

func handleMatchComplete(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		rt.Multiplayer.Complete(sess, m)
	}
}

func handleMatchChangeMods(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	mods, err := r.ReadU32()
	if err != nil {
		return
	}
	if m, ok := matchOf(rt, sess); ok {
		_ = rt.Multiplayer.ChangeMods(sess, m, mods)
	}
}

func handleMatchLoadComplete(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		rt.Multiplayer.Loaded(sess, m)
	}
}

func handleMatchNoBeatmap(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		_ = rt.Multiplayer.SetSlotStatus(sess, m, multiplayer.SlotNoMap)
	}
}

func handleMatchNotReady(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		_ = rt.Multiplayer.SetSlotStatus(sess, m, multiplayer.SlotNotReady)
	}
}

func handleMatchFailed(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		rt.Multiplayer.Fail(sess, m)
	}
}

func handleMatchHasBeatmap(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		_ = rt.Multiplayer.SetSlotStatus(sess, m, multiplayer.SlotNotReady)
	}
}

func handleMatchSkipRequest(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		rt.Multiplayer.Skip(sess, m)
	}
}

func handleChannelJoin(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	name, err := r.ReadString()
	if err != nil {
		return
	}
	joinPkt, infoPkt, err := rt.Chat.Join(sess, name)
	if err != nil {
		return
	}
	sess.Enqueue(joinPkt)
	rt.Streams.Broadcast(rt.Chat, stream.ChatName(name), infoPkt, nil)
}

// handleBeatmapInfoRequest reacts to a packet the client stopped sending
// around 2020: any client that still sends it is running a version
// changer to dodge the login gate, so the account is restricted on the
// spot rather than answered.
func handleBeatmapInfoRequest(rt *Router, sess *session.Session, payload []byte) {
	log.Printf("router: %s sent beatmapInfoRequest, restricting for login-gate bypass", sess.Username)
	_ = rt.Login.Store.RestrictUser(context.Background(), sess.UserID, "outdated client bypassing login gate")
	sess.Restricted.Store(true)
}

func handleMatchTransferHost(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	slotID, err := r.ReadU32()
	if err != nil {
		return
	}
	m, ok := matchOf(rt, sess)
	if !ok {
		return
	}
	m.Lock()
	if int(slotID) < 0 || int(slotID) >= multiplayer.NumSlots {
		m.Unlock()
		return
	}
	targetUserID := m.Slots[slotID].UserID
	m.Unlock()
	_ = rt.Multiplayer.TransferHost(sess, m, targetUserID)
}

func handleFriendAdd(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	friendID, err := r.ReadI32()
	if err != nil {
		return
	}
	log.Printf("router: %s requested friend add %d (friends are not modeled)", sess.Username, friendID)
}

func handleFriendRemove(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	friendID, err := r.ReadI32()
	if err != nil {
		return
	}
	log.Printf("router: %s requested friend remove %d (friends are not modeled)", sess.Username, friendID)
}

func handleMatchChangeTeam(rt *Router, sess *session.Session, payload []byte) {
	if m, ok := matchOf(rt, sess); ok {
		_ = rt.Multiplayer.ChangeTeam(sess, m)
	}
}

func handleChannelPart(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	name, err := r.ReadString()
	if err != nil {
		return
	}
	rt.Chat.Part(sess, name, false)
	broadcastChannelInfo(rt, name)
}

func handleReceiveUpdates(rt *Router, sess *session.Session, payload []byte) {
	// Filter value is not modeled; every update is always sent.
}

func handleSetAwayMessage(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	if _, err := r.ReadString(); err != nil { // unused
		return
	}
	msg, err := r.ReadString()
	if err != nil {
		return
	}
	sess.SetAwayMessage(msg)
}

func handleUserStatsRequest(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	ids, err := r.ReadIntList()
	if err != nil {
		return
	}
	if len(ids) > 32 {
		log.Printf("router: %s requested stats for %d users, capping at 32", sess.Username, len(ids))
		ids = ids[:32]
	}
	for _, id := range ids {
		if id == sess.UserID {
			continue
		}
		if target, ok := rt.Sessions.ByUserID(id); ok {
			sess.Enqueue(proto.UserStats(target))
		}
	}
}

func handleMatchInvite(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	userID, err := r.ReadU32()
	if err != nil {
		return
	}
	m, ok := matchOf(rt, sess)
	if !ok {
		return
	}
	target, _ := rt.Sessions.ByUserID(int32(userID))
	rt.Multiplayer.Invite(sess, m, target)
}

func handleMatchChangePassword(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	_, password, err := parseMatchSettings(r)
	if err != nil {
		return
	}
	m, ok := matchOf(rt, sess)
	if !ok {
		return
	}
	_ = rt.Multiplayer.ChangePassword(sess, m, password)
}

func handleTournamentMatchInfoRequest(rt *Router, sess *session.Session, payload []byte) {
	if !sess.Tournament {
		return
	}
	r := wire.NewReader(payload)
	matchID, err := r.ReadU32()
	if err != nil {
		return
	}
	if m, ok := rt.Multiplayer.Matches.Get(int32(matchID)); ok {
		sess.Enqueue(rt.Multiplayer.JoinSuccessPacket(m))
	}
}

func handleUserPanelRequest(rt *Router, sess *session.Session, payload []byte) {
	r := wire.NewReader(payload)
	ids, err := r.ReadIntList()
	if err != nil {
		return
	}
	if len(ids) > 32 {
		log.Printf("router: %s requested presence for %d users, capping at 32", sess.Username, len(ids))
		ids = ids[:32]
	}
	for _, id := range ids {
		if id == sess.UserID {
			continue
		}
		if target, ok := rt.Sessions.ByUserID(id); ok {
			sess.Enqueue(proto.UserPresence(target))
		}
	}
}

func handleTournamentJoinMatchChannel(rt *Router, sess *session.Session, payload []byte) {
	if !sess.Tournament {
		return
	}
	r := wire.NewReader(payload)
	matchID, err := r.ReadU32()
	if err != nil {
		return
	}
	if _, ok := rt.Multiplayer.Matches.Get(int32(matchID)); !ok {
		return
	}
	channelName := multiplayer.MatchChannelName(int32(matchID))
	joinChannelIfNeeded(rt, sess, channelName)
	sess.SetMatchID(int32(matchID))
}

func handleTournamentLeaveMatchChannel(rt *Router, sess *session.Session, payload []byte) {
	if !sess.Tournament {
		return
	}
	r := wire.NewReader(payload)
	matchID, err := r.ReadU32()
	if err != nil {
		return
	}
	channelName := multiplayer.MatchChannelName(int32(matchID))
	rt.Chat.Part(sess, channelName, false)
	sess.SetMatchID(-1)
}
