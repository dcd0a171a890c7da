package wire

// Packet ids. Values are the stable bancho wire constants; they must
// match the upstream osu! client and are never renumbered.
const (
	// Client -> server
	ClientChangeAction       uint16 = 0
	ClientSendPublicMessage  uint16 = 1
	ClientLogout             uint16 = 2
	ClientRequestStatusUpdate uint16 = 3
	ClientPong               uint16 = 4
	ClientStartSpectating    uint16 = 16
	ClientStopSpectating     uint16 = 17
	ClientSpectateFrames     uint16 = 18
	ClientErrorReport        uint16 = 20
	ClientCantSpectate       uint16 = 21
	ClientSendPrivateMessage uint16 = 25
	ClientPartLobby          uint16 = 29
	ClientJoinLobby          uint16 = 30
	ClientCreateMatch        uint16 = 31
	ClientJoinMatch          uint16 = 32
	ClientPartMatch          uint16 = 33
	ClientMatchChangeSlot    uint16 = 38
	ClientMatchReady         uint16 = 39
	ClientMatchLock          uint16 = 40
	ClientMatchChangeSettings uint16 = 41
	ClientMatchStart         uint16 = 44
	ClientMatchScoreUpdate   uint16 = 47
	ClientMatchComplete      uint16 = 49
	ClientMatchChangeMods    uint16 = 51
	ClientMatchLoadComplete  uint16 = 52
	ClientMatchNoBeatmap     uint16 = 54
	ClientMatchNotReady      uint16 = 55
	ClientMatchFailed        uint16 = 56
	ClientMatchHasBeatmap    uint16 = 59
	ClientMatchSkipRequest   uint16 = 60
	ClientChannelJoin        uint16 = 63
	// ClientBeatmapInfoRequest was removed from the client around 2020;
	// any session still sending it is running a login-gate bypass.
	ClientBeatmapInfoRequest uint16 = 68
	ClientMatchTransferHost  uint16 = 70
	ClientFriendAdd          uint16 = 73
	ClientFriendRemove       uint16 = 74
	ClientMatchChangeTeam    uint16 = 77
	ClientChannelPart        uint16 = 78
	ClientReceiveUpdates     uint16 = 79
	ClientSetAwayMessage     uint16 = 82
	ClientUserStatsRequest   uint16 = 85
	ClientMatchInvite        uint16 = 87
	ClientMatchChangePassword uint16 = 90
	ClientTournamentMatchInfoRequest uint16 = 93
	ClientUserPanelRequest   uint16 = 97
	ClientTournamentJoinMatchChannel  uint16 = 108
	ClientTournamentLeaveMatchChannel uint16 = 109

	// Server -> client
	ServerUserID                  uint16 = 5
	ServerSendMessage              uint16 = 7
	ServerPing                     uint16 = 8
	ServerHandleIRCUsernameChange  uint16 = 9
	ServerHandleIRCQuit            uint16 = 10
	ServerUserStats                uint16 = 11
	ServerUserLogout               uint16 = 12
	ServerSpectatorJoined          uint16 = 13
	ServerSpectatorLeft            uint16 = 14
	ServerSpectateFrames           uint16 = 15
	ServerVersionUpdate            uint16 = 19
	ServerSpectatorCantSpectate    uint16 = 22
	ServerGetAttention             uint16 = 23
	ServerNotification             uint16 = 24
	ServerUpdateMatch              uint16 = 26
	ServerNewMatch                 uint16 = 27
	ServerDisposeMatch             uint16 = 28
	ServerToggleBlockNonFriendPM   uint16 = 34
	ServerMatchJoinSuccess         uint16 = 36
	ServerMatchJoinFail            uint16 = 37
	ServerFellowSpectatorJoined    uint16 = 42
	ServerFellowSpectatorLeft      uint16 = 43
	ServerMatchStart               uint16 = 46
	ServerMatchScoreUpdate         uint16 = 48
	ServerMatchTransferHost        uint16 = 50
	ServerMatchAllPlayersLoaded    uint16 = 53
	ServerMatchPlayerFailed        uint16 = 57
	ServerMatchComplete            uint16 = 58
	ServerMatchSkip                uint16 = 61
	ServerUnauthorized             uint16 = 62
	ServerChannelJoinSuccess       uint16 = 64
	ServerChannelInfo              uint16 = 65
	ServerChannelKicked            uint16 = 66
	ServerChannelAutoJoin          uint16 = 67
	ServerBeatmapInfoReply         uint16 = 69
	ServerPrivileges               uint16 = 71
	ServerFriendsList               uint16 = 72
	ServerProtocolVersion          uint16 = 75
	ServerMainMenuIcon             uint16 = 76
	ServerMatchPlayerSkipped       uint16 = 81
	ServerUserPanel                uint16 = 83
	ServerRestart                  uint16 = 86
	ServerInvite                   uint16 = 88
	ServerChannelInfoEnd           uint16 = 89
	ServerMatchChangePassword      uint16 = 91
	ServerSilenceEnd                uint16 = 92
	ServerUserSilenced             uint16 = 94
	ServerUserPresenceSingle       uint16 = 95
	ServerUserPresenceBundle       uint16 = 96
	ServerUserDMsBlocked            uint16 = 100
	ServerTargetIsSilenced         uint16 = 101
	ServerVersionUpdateForced      uint16 = 102
	ServerSwitchServer             uint16 = 103
	ServerAccountRestricted        uint16 = 104
	ServerRTX                       uint16 = 105
	ServerMatchAbort               uint16 = 106
	ServerSwitchTournamentServer   uint16 = 107
)

// RestrictedAllowList enumerates client packet ids dispatched to a
// restricted (cheat-flagged) session; all others are silently dropped
// per spec.md §4.8.
var RestrictedAllowList = map[uint16]bool{
	ClientLogout:             true,
	ClientRequestStatusUpdate: true,
	ClientPong:               true,
	ClientChangeAction:       true,
	ClientChannelJoin:        true,
	ClientChannelPart:        true,
	ClientUserStatsRequest:   true,
	ClientReceiveUpdates:     true,
}
