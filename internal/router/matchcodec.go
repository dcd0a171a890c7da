package router

import (
	"bancho/server/internal/multiplayer"
	"bancho/server/internal/wire"
)

// parseMatchSettings decodes the matchSettings payload shared by
// createMatch and changeMatchSettings. The wire layout carries several
// fields this server does not use (a stale match id, an in-progress
// flag, per-slot status/team/user-id triples, the host user id): they
// are read in order to stay aligned with the rest of the payload and
// then discarded, since this server tracks that state on the Match
// itself rather than trusting the client's copy of it.
func parseMatchSettings(r *wire.Reader) (multiplayer.Settings, string, error) {
	var cfg multiplayer.Settings

	if _, err := r.ReadU16(); err != nil { // stale match id
		return cfg, "", err
	}
	if _, err := r.ReadU8(); err != nil { // in-progress flag
		return cfg, "", err
	}
	if _, err := r.ReadU8(); err != nil { // unused
		return cfg, "", err
	}
	if _, err := r.ReadU32(); err != nil { // global mods, changed via a dedicated op instead
		return cfg, "", err
	}

	name, err := r.ReadString()
	if err != nil {
		return cfg, "", err
	}
	password, err := r.ReadString()
	if err != nil {
		return cfg, "", err
	}
	beatmapName, err := r.ReadString()
	if err != nil {
		return cfg, "", err
	}
	beatmapID, err := r.ReadU32()
	if err != nil {
		return cfg, "", err
	}
	beatmapMD5, err := r.ReadString()
	if err != nil {
		return cfg, "", err
	}

	var statuses [multiplayer.NumSlots]multiplayer.SlotStatus
	for i := 0; i < multiplayer.NumSlots; i++ {
		raw, err := r.ReadU8()
		if err != nil {
			return cfg, "", err
		}
		statuses[i] = multiplayer.SlotStatus(raw)
	}
	for i := 0; i < multiplayer.NumSlots; i++ {
		if _, err := r.ReadU8(); err != nil { // slot team
			return cfg, "", err
		}
	}
	for i := 0; i < multiplayer.NumSlots; i++ {
		if statuses[i].Occupied() {
			if _, err := r.ReadI32(); err != nil { // slot user id
				return cfg, "", err
			}
		}
	}
	if _, err := r.ReadI32(); err != nil { // host user id, host changes via a dedicated op instead
		return cfg, "", err
	}

	mode, err := r.ReadU8()
	if err != nil {
		return cfg, "", err
	}
	scoringType, err := r.ReadU8()
	if err != nil {
		return cfg, "", err
	}
	teamType, err := r.ReadU8()
	if err != nil {
		return cfg, "", err
	}
	freeMods, err := r.ReadU8()
	if err != nil {
		return cfg, "", err
	}

	cfg.Name = name
	cfg.BeatmapID = int32(beatmapID)
	cfg.BeatmapName = beatmapName
	cfg.BeatmapMD5 = beatmapMD5
	cfg.Mode = mode
	cfg.ScoringType = multiplayer.ScoringType(scoringType)
	cfg.TeamType = multiplayer.TeamType(teamType)
	cfg.FreeMods = freeMods != 0
	return cfg, password, nil
}

// parseScoreFrame decodes an inbound match_frames payload, mirroring
// buildScoreUpdatePacket's write order. The placeholder slot id the
// client sends is discarded; the server recomputes it from the
// sender's own slot before rebroadcasting.
func parseScoreFrame(r *wire.Reader) (multiplayer.ScoreFrame, error) {
	var f multiplayer.ScoreFrame

	t, err := r.ReadI32()
	if err != nil {
		return f, err
	}
	if _, err := r.ReadU8(); err != nil { // placeholder slot id
		return f, err
	}
	c300, err := r.ReadU16()
	if err != nil {
		return f, err
	}
	c100, err := r.ReadU16()
	if err != nil {
		return f, err
	}
	c50, err := r.ReadU16()
	if err != nil {
		return f, err
	}
	cGeki, err := r.ReadU16()
	if err != nil {
		return f, err
	}
	cKatu, err := r.ReadU16()
	if err != nil {
		return f, err
	}
	cMiss, err := r.ReadU16()
	if err != nil {
		return f, err
	}
	totalScore, err := r.ReadI32()
	if err != nil {
		return f, err
	}
	maxCombo, err := r.ReadU16()
	if err != nil {
		return f, err
	}
	currentCombo, err := r.ReadU16()
	if err != nil {
		return f, err
	}
	perfect, err := r.ReadU8()
	if err != nil {
		return f, err
	}
	currentHP, err := r.ReadU8()
	if err != nil {
		return f, err
	}
	tag, err := r.ReadI8()
	if err != nil {
		return f, err
	}
	scoreV2, err := r.ReadU8()
	if err != nil {
		return f, err
	}

	f.Time = t
	f.Count300 = c300
	f.Count100 = c100
	f.Count50 = c50
	f.CountGeki = cGeki
	f.CountKatu = cKatu
	f.CountMiss = cMiss
	f.TotalScore = totalScore
	f.MaxCombo = maxCombo
	f.CurrentCombo = currentCombo
	f.Perfect = perfect != 0
	f.CurrentHP = currentHP
	f.Tag = tag
	f.ScoreV2 = scoreV2 != 0
	return f, nil
}
