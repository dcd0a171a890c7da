package multiplayer

import (
	"errors"
	"strconv"
	"strings"

	"bancho/server/internal/chat"
	"bancho/server/internal/session"
	"bancho/server/internal/stream"
	"bancho/server/internal/wire"
)

var (
	ErrWrongPassword  = errors.New("multiplayer: wrong password")
	ErrNotHost        = errors.New("multiplayer: not host")
	ErrSlotNotOpen    = errors.New("multiplayer: target slot not open")
	ErrMatchFull      = errors.New("multiplayer: no open slots")
	ErrNotInMatch     = errors.New("multiplayer: user not in match")
	ErrAlreadyInMatch = errors.New("multiplayer: user already has a slot in this match")
)

// PerformanceCalculator is the PP collaborator consumed opaquely during
// pp-competition score relay (spec.md §6.4).
type PerformanceCalculator interface {
	Calculate(beatmapID int32, mode uint8, mods uint32, maxCombo int32, accuracy float64, missCount int32, passedObjects int32) (pp float64, err error)
}

// ScoreFrame is the closed record replacing the source's duck-typed
// score object (spec.md §9 Design Notes).
type ScoreFrame struct {
	Time        int32
	Count300    uint16
	Count100    uint16
	Count50     uint16
	CountGeki   uint16
	CountKatu   uint16
	CountMiss   uint16
	TotalScore  int32
	MaxCombo    uint16
	CurrentCombo uint16
	Perfect     bool
	CurrentHP   uint8
	Tag         int8
	ScoreV2     bool
}

// Sessions is the subset of session.Registry the multiplayer service needs.
type Sessions interface {
	ByID(id string) (*session.Session, bool)
	ByUserID(userID int32) (*session.Session, bool)
}

// Service wires the match registry to streams, sessions, and the PP
// collaborator.
type Service struct {
	Matches  *Registry
	Streams  *stream.Registry
	Sessions Sessions
	Chat     *chat.Service
	PP       PerformanceCalculator
}

// NewService constructs a multiplayer Service.
func NewService(matches *Registry, streams *stream.Registry, sessions Sessions, chatSvc *chat.Service, pp PerformanceCalculator) *Service {
	return &Service{Matches: matches, Streams: streams, Sessions: sessions, Chat: chatSvc, PP: pp}
}

// SendTo implements stream.Sender.
func (s *Service) SendTo(sessionID string, b []byte) {
	if sess, ok := s.Sessions.ByID(sessionID); ok {
		sess.Enqueue(b)
	}
}

// Create allocates a new match with creator in slot 0, per spec.md §4.6.
func (s *Service) Create(creator *session.Session, name, password string, beatmapID int32, beatmapName, beatmapMD5 string, mode uint8) *Match {
	m := &Match{
		Name:        name,
		Password:    password,
		HostUserID:  creator.UserID,
		BeatmapID:   beatmapID,
		BeatmapName: beatmapName,
		BeatmapMD5:  beatmapMD5,
		Mode:        mode,
		ScoringType: ScoreScore,
		TeamType:    TeamHeadToHead,
	}
	for i := range m.Slots {
		m.Slots[i].Status = SlotOpen
	}
	m.Slots[0].Status = SlotNotReady
	m.Slots[0].UserID = creator.UserID

	id := s.Matches.Insert(m)
	creator.SetMatchID(id)
	s.Streams.Join(stream.MatchName(id), creator.ID)
	if s.Chat != nil {
		channelName := matchChannelName(id)
		s.Chat.Channels.Add(&chat.Channel{Name: channelName, PublicRead: true, PublicWrite: true})
		s.Chat.Join(creator, channelName)
	}

	s.Streams.Broadcast(s, stream.Lobby, s.newMatchPacket(m), nil)
	return m
}

// Join places joiner into the lowest-indexed open slot after validating
// the password, per spec.md §4.6's "Join" operation.
func (s *Service) Join(joiner *session.Session, m *Match, password string) error {
	m.Lock()
	defer m.Unlock()

	if m.Password != "" && m.Password != password {
		return ErrWrongPassword
	}
	if m.SlotOf(joiner.UserID) != -1 {
		return ErrAlreadyInMatch
	}
	idx := m.LowestOpenSlot()
	if idx == -1 {
		return ErrMatchFull
	}
	m.Slots[idx].Status = SlotNotReady
	m.Slots[idx].UserID = joiner.UserID

	joiner.SetMatchID(m.ID)
	s.Streams.Join(stream.MatchName(m.ID), joiner.ID)
	if s.Chat != nil {
		s.Chat.Join(joiner, matchChannelName(m.ID))
	}

	s.broadcastUpdateLocked(m)
	return nil
}

// Leave removes userID's slot, reassigning host or disposing the match
// if it becomes empty, per spec.md §4.6's "Leave" operation.
func (s *Service) Leave(leaver *session.Session, m *Match) {
	m.Lock()
	idx := m.SlotOf(leaver.UserID)
	if idx == -1 {
		m.Unlock()
		return
	}
	m.Slots[idx] = Slot{Status: SlotOpen}

	leaver.SetMatchID(-1)
	s.Streams.Leave(stream.MatchName(m.ID), leaver.ID)
	s.Streams.Leave(stream.MatchPlayingName(m.ID), leaver.ID)
	if s.Chat != nil {
		s.Chat.Part(leaver, matchChannelName(m.ID), false)
	}

	if m.HostUserID == leaver.UserID {
		if next := m.LowestOccupiedSlot(); next != -1 {
			m.HostUserID = m.Slots[next].UserID
		}
	}

	if m.OccupiedCount() == 0 {
		s.disposeLocked(m)
		m.Unlock()
		return
	}
	s.broadcastUpdateLocked(m)
	m.Unlock()
}

func (s *Service) disposeLocked(m *Match) {
	s.Streams.Broadcast(s, stream.Lobby, wire.NewWriter().WriteI16(int16(m.ID)).Finish(wire.ServerDisposeMatch), nil)
	s.Streams.Destroy(stream.MatchName(m.ID))
	s.Streams.Destroy(stream.MatchPlayingName(m.ID))
	s.Matches.Delete(m.ID)
}

// ChangeSlot swaps the requesting user's slot with an open target slot.
func (s *Service) ChangeSlot(requester *session.Session, m *Match, targetIdx int) error {
	m.Lock()
	defer m.Unlock()
	from := m.SlotOf(requester.UserID)
	if from == -1 {
		return ErrNotInMatch
	}
	if targetIdx < 0 || targetIdx >= NumSlots || m.Slots[targetIdx].Status != SlotOpen {
		return ErrSlotNotOpen
	}
	m.Slots[targetIdx], m.Slots[from] = m.Slots[from], m.Slots[targetIdx]
	m.Slots[from] = Slot{Status: SlotOpen}
	s.broadcastUpdateLocked(m)
	return nil
}

// ToggleLock is host-only; toggles a slot between locked and open,
// rejecting a slot that currently holds a user.
func (s *Service) ToggleLock(host *session.Session, m *Match, idx int) error {
	m.Lock()
	defer m.Unlock()
	if m.HostUserID != host.UserID {
		return ErrNotHost
	}
	if m.Slots[idx].Occupied() {
		return ErrSlotNotOpen
	}
	if m.Slots[idx].Status == SlotLocked {
		m.Slots[idx].Status = SlotOpen
	} else {
		m.Slots[idx].Status = SlotLocked
	}
	s.broadcastUpdateLocked(m)
	return nil
}

// ChangeTeam toggles the requester's slot between team 0 (red) and 1 (blue).
func (s *Service) ChangeTeam(requester *session.Session, m *Match) error {
	m.Lock()
	defer m.Unlock()
	idx := m.SlotOf(requester.UserID)
	if idx == -1 {
		return ErrNotInMatch
	}
	m.Slots[idx].Team ^= 1
	s.broadcastUpdateLocked(m)
	return nil
}

// ChangeMods updates the requester's per-slot mods when free-mods is on,
// or the match-global mods when the requester is host.
func (s *Service) ChangeMods(requester *session.Session, m *Match, mods uint32) error {
	m.Lock()
	defer m.Unlock()
	if m.FreeMods {
		idx := m.SlotOf(requester.UserID)
		if idx == -1 {
			return ErrNotInMatch
		}
		m.Slots[idx].Mods = mods
	} else {
		if m.HostUserID != requester.UserID {
			return ErrNotHost
		}
		m.Mods = mods
	}
	s.broadcastUpdateLocked(m)
	return nil
}

// Settings carries the mutable host-only match configuration fields.
type Settings struct {
	Name        string
	BeatmapID   int32
	BeatmapName string
	BeatmapMD5  string
	Mode        uint8
	ScoringType ScoringType
	TeamType    TeamType
	FreeMods    bool
}

// ChangeSettings is host-only; if free-mods was just enabled, the global
// mods are redistributed to every occupied slot.
func (s *Service) ChangeSettings(host *session.Session, m *Match, cfg Settings) error {
	m.Lock()
	defer m.Unlock()
	if m.HostUserID != host.UserID {
		return ErrNotHost
	}
	enablingFreeMods := cfg.FreeMods && !m.FreeMods
	m.Name = cfg.Name
	m.BeatmapID = cfg.BeatmapID
	m.BeatmapName = cfg.BeatmapName
	m.BeatmapMD5 = cfg.BeatmapMD5
	m.Mode = cfg.Mode
	m.ScoringType = cfg.ScoringType
	m.TeamType = cfg.TeamType
	m.FreeMods = cfg.FreeMods

	if enablingFreeMods {
		for i := range m.Slots {
			if m.Slots[i].Occupied() {
				m.Slots[i].Mods = m.Mods
			}
		}
	}
	s.broadcastUpdateLocked(m)
	return nil
}

// ChangePassword is host-only.
func (s *Service) ChangePassword(host *session.Session, m *Match, password string) error {
	m.Lock()
	defer m.Unlock()
	if m.HostUserID != host.UserID {
		return ErrNotHost
	}
	m.Password = password
	s.broadcastUpdateLocked(m)
	return nil
}

// TransferHost is host-only; newHostUserID must occupy a slot.
func (s *Service) TransferHost(host *session.Session, m *Match, newHostUserID int32) error {
	m.Lock()
	defer m.Unlock()
	if m.HostUserID != host.UserID {
		return ErrNotHost
	}
	if m.SlotOf(newHostUserID) == -1 {
		return ErrNotInMatch
	}
	m.HostUserID = newHostUserID
	s.broadcastUpdateLocked(m)
	return nil
}

// SetSlotStatus sets the requester's own slot status (ready, not-ready,
// no-map), as self-reported by participants.
func (s *Service) SetSlotStatus(requester *session.Session, m *Match, status SlotStatus) error {
	m.Lock()
	defer m.Unlock()
	idx := m.SlotOf(requester.UserID)
	if idx == -1 {
		return ErrNotInMatch
	}
	m.Slots[idx].Status = status
	s.broadcastUpdateLocked(m)
	return nil
}

// Start transitions every notReady/ready participant to playing and adds
// them to the match's playing stream, per spec.md §4.6's "Start" operation.
func (s *Service) Start(host *session.Session, m *Match) error {
	m.Lock()
	if m.HostUserID != host.UserID {
		m.Unlock()
		return ErrNotHost
	}
	playingName := stream.MatchPlayingName(m.ID)
	for i := range m.Slots {
		sl := &m.Slots[i]
		if sl.Status == SlotNotReady || sl.Status == SlotReady {
			sl.Status = SlotPlaying
			sl.Loaded, sl.Skip, sl.Completed, sl.Failed = false, false, false, false
			sl.Score, sl.HP = 0, 0
			if target, ok := s.Sessions.ByUserID(sl.UserID); ok {
				s.Streams.Join(playingName, target.ID)
			}
		}
	}
	m.InProgress = true
	m.Unlock()

	s.Streams.Broadcast(s, stream.MatchName(m.ID), wire.Simple(wire.ServerMatchStart), nil)
	return nil
}

// UpdateScore applies an inbound score-update frame from sender, opaquely
// substituting a PP value for total score when the match is configured
// for pp-competition, then rebroadcasts a repacked frame to the playing
// stream with the server-recomputed slot id.
func (s *Service) UpdateScore(sender *session.Session, m *Match, f ScoreFrame) {
	m.Lock()
	idx := m.SlotOf(sender.UserID)
	if idx == -1 {
		m.Unlock()
		return
	}
	slot := &m.Slots[idx]
	totalScore := f.TotalScore
	if m.PPCompetition && s.PP != nil {
		mods := slot.Mods | m.Mods
		passed := int32(f.Count300) + int32(f.Count100) + int32(f.Count50) + int32(f.CountMiss)
		accuracy := computeAccuracy(f)
		if pp, err := s.PP.Calculate(m.BeatmapID, m.Mode, mods, int32(f.MaxCombo), accuracy, int32(f.CountMiss), passed); err == nil {
			totalScore = int32(pp + 0.5)
		}
	}
	slot.Score = totalScore
	slot.HP = float32(f.CurrentHP)
	frame := f
	frame.TotalScore = totalScore
	packet := buildScoreUpdatePacket(int32(idx), frame)
	m.Unlock()

	s.Streams.Broadcast(s, stream.MatchPlayingName(m.ID), packet, nil)
}

// computeAccuracy mirrors the upstream calc_acc formula for standard
// scoring: weighted hit-window counts over total objects.
func computeAccuracy(f ScoreFrame) float64 {
	total := float64(f.Count300) + float64(f.Count100) + float64(f.Count50) + float64(f.CountMiss)
	if total == 0 {
		return 0
	}
	weighted := float64(f.Count300)*300 + float64(f.Count100)*100 + float64(f.Count50)*50
	return weighted / (total * 300) * 100
}

// Complete marks slot idx's owner as completed and, once every playing
// slot is terminal, resolves match-complete per spec.md §4.6.
func (s *Service) Complete(sender *session.Session, m *Match) {
	m.Lock()
	idx := m.SlotOf(sender.UserID)
	if idx == -1 {
		m.Unlock()
		return
	}
	m.Slots[idx].Completed = true
	allDone := m.AllTerminal()
	if allDone {
		for i := range m.Slots {
			if m.Slots[i].Status == SlotPlaying {
				m.Slots[i].Status = SlotNotReady
			}
		}
		m.InProgress = false
		s.Streams.Destroy(stream.MatchPlayingName(m.ID))
	}
	m.Unlock()

	if allDone {
		s.Streams.Broadcast(s, stream.MatchName(m.ID), wire.Simple(wire.ServerMatchComplete), nil)
	}
}

// Fail marks slot idx's owner as failed and relays the failure.
func (s *Service) Fail(sender *session.Session, m *Match) {
	m.Lock()
	idx := m.SlotOf(sender.UserID)
	if idx == -1 {
		m.Unlock()
		return
	}
	m.Slots[idx].Failed = true
	m.Unlock()
	packet := wire.NewWriter().WriteI32(int32(idx)).Finish(wire.ServerMatchPlayerFailed)
	s.Streams.Broadcast(s, stream.MatchPlayingName(m.ID), packet, nil)
}

// Loaded marks the sender's slot loaded, broadcasting "all loaded" once
// every playing slot has done so.
func (s *Service) Loaded(sender *session.Session, m *Match) {
	m.Lock()
	idx := m.SlotOf(sender.UserID)
	if idx == -1 {
		m.Unlock()
		return
	}
	m.Slots[idx].Loaded = true
	all := true
	for _, i := range m.PlayingSlots() {
		if !m.Slots[i].Loaded {
			all = false
			break
		}
	}
	m.Unlock()
	if all {
		s.Streams.Broadcast(s, stream.MatchPlayingName(m.ID), wire.Simple(wire.ServerMatchAllPlayersLoaded), nil)
	}
}

// Skip marks the sender's slot as requesting skip, broadcasting an
// individual "player skipped" packet, and "all skipped" once unanimous.
func (s *Service) Skip(sender *session.Session, m *Match) {
	m.Lock()
	idx := m.SlotOf(sender.UserID)
	if idx == -1 {
		m.Unlock()
		return
	}
	m.Slots[idx].Skip = true
	all := true
	for _, i := range m.PlayingSlots() {
		if !m.Slots[i].Skip {
			all = false
			break
		}
	}
	m.Unlock()

	s.Streams.Broadcast(s, stream.MatchPlayingName(m.ID), wire.NewWriter().WriteI32(int32(idx)).Finish(wire.ServerMatchPlayerSkipped), nil)
	if all {
		s.Streams.Broadcast(s, stream.MatchPlayingName(m.ID), wire.Simple(wire.ServerMatchSkip), nil)
	}
}

// Invite delivers a match-invite chat packet to target, silently failing
// if target is offline.
func (s *Service) Invite(from *session.Session, m *Match, target *session.Session) {
	if target == nil {
		return
	}
	body := "Come join my multiplayer match: " + matchInviteURL(m)
	packet := wire.NewWriter().
		WriteString(from.Username).
		WriteString(body).
		WriteString(target.Username).
		WriteI32(from.UserID).
		Finish(wire.ServerSendMessage)
	target.Enqueue(packet)
}

func matchInviteURL(m *Match) string {
	return "osump://" + strconv.Itoa(int(m.ID)) + "/" + m.Password
}

func matchChannelName(id int32) string {
	return "#multi_" + strconv.Itoa(int(id))
}

// broadcastUpdateLocked broadcasts a match-update to the match stream and
// a password-censored match-update to the lobby. Caller must hold m's lock.
func (s *Service) broadcastUpdateLocked(m *Match) {
	s.Streams.Broadcast(s, stream.MatchName(m.ID), s.updateMatchPacket(m, false), nil)
	s.Streams.Broadcast(s, stream.Lobby, s.updateMatchPacket(m, true), nil)
}

func (s *Service) newMatchPacket(m *Match) []byte {
	return s.matchDataPacket(m, false, wire.ServerNewMatch)
}

func (s *Service) updateMatchPacket(m *Match, censored bool) []byte {
	return s.matchDataPacket(m, censored, wire.ServerUpdateMatch)
}

// matchDataPacket serializes the full match data block: id, name,
// (optionally censored) password, beatmap info, per-slot status/team/
// user-id/mods, host, mode, scoring/team type, free-mods flag, global mods.
func (s *Service) matchDataPacket(m *Match, censorPassword bool, packetID uint16) []byte {
	w := wire.NewWriter()
	w.WriteI16(int16(m.ID))
	w.WriteU8(boolByte(m.InProgress))
	w.WriteU8(0) // match type, unused beyond the base protocol
	w.WriteU32(m.Mods)
	w.WriteString(m.Name)
	password := m.Password
	if censorPassword && password != "" {
		password = strings.Repeat("*", len(password))
	}
	w.WriteString(password)
	w.WriteString(m.BeatmapName)
	w.WriteI32(m.BeatmapID)
	w.WriteString(m.BeatmapMD5)
	for i := range m.Slots {
		w.WriteU8(uint8(m.Slots[i].Status))
	}
	for i := range m.Slots {
		w.WriteU8(m.Slots[i].Team)
	}
	for i := range m.Slots {
		if m.Slots[i].Occupied() {
			w.WriteI32(m.Slots[i].UserID)
		}
	}
	w.WriteI32(m.HostUserID)
	w.WriteU8(m.Mode)
	w.WriteU8(uint8(m.ScoringType))
	w.WriteU8(uint8(m.TeamType))
	w.WriteU8(boolByte(m.FreeMods))
	if m.FreeMods {
		for i := range m.Slots {
			w.WriteU32(m.Slots[i].Mods)
		}
	}
	w.WriteI32(0) // seed, unused beyond the base protocol
	return w.Finish(packetID)
}

func buildScoreUpdatePacket(slotID int32, f ScoreFrame) []byte {
	w := wire.NewWriter()
	w.WriteI32(f.Time)
	w.WriteU8(uint8(slotID))
	w.WriteU16(f.Count300)
	w.WriteU16(f.Count100)
	w.WriteU16(f.Count50)
	w.WriteU16(f.CountGeki)
	w.WriteU16(f.CountKatu)
	w.WriteU16(f.CountMiss)
	w.WriteI32(f.TotalScore)
	w.WriteU16(f.MaxCombo)
	w.WriteU16(f.CurrentCombo)
	w.WriteU8(boolByte(f.Perfect))
	w.WriteU8(f.CurrentHP)
	w.WriteI8(f.Tag)
	w.WriteU8(boolByte(f.ScoreV2))
	return w.Finish(wire.ServerMatchScoreUpdate)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// JoinSuccessPacket builds the full match-data block sent to a session
// that has just joined or created m.
func (s *Service) JoinSuccessPacket(m *Match) []byte {
	return s.matchDataPacket(m, false, wire.ServerMatchJoinSuccess)
}

// LobbyMatchPacket builds the match-create packet sent to a session
// that has just joined the lobby, once per currently-live match.
func (s *Service) LobbyMatchPacket(m *Match) []byte {
	return s.newMatchPacket(m)
}

// MatchChannelName returns the chat channel name backing match id.
func MatchChannelName(id int32) string {
	return matchChannelName(id)
}

// DisposeIfEmpty tears m down if it currently holds no players, covering
// matches left behind by a disconnect path that bypassed Leave. Returns
// whether m was disposed.
func (s *Service) DisposeIfEmpty(m *Match) bool {
	m.Lock()
	defer m.Unlock()
	if m.OccupiedCount() != 0 {
		return false
	}
	s.disposeLocked(m)
	return true
}
