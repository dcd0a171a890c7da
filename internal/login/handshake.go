// Package login implements the handshake parsing, authentication, and
// welcome-sequence steps that turn a POST body with no osu-token into a
// live session.
package login

import (
	"errors"
	"strconv"
	"strings"
)

// ErrMalformed indicates the handshake body did not have the expected
// newline/pipe/colon shape.
var ErrMalformed = errors.New("login: malformed handshake body")

// Handshake is the parsed three-line login body.
type Handshake struct {
	Username         string
	PasswordMD5      string
	OsuVersion       string
	UTCOffset        int
	DisplayCity      string
	MACList          string
	MACHash          string
	UniqueID         string
	DiskID           string
	BlockNonFriendPM bool
}

// ParseHandshake splits the login body into its fields, per the
// "<username>\n<password-md5>\n<version|offset|city|hwid|blockpm>"
// layout.
func ParseHandshake(body string) (Handshake, error) {
	body = strings.TrimRight(body, "\r\n")
	lines := strings.Split(body, "\n")
	if len(lines) < 3 {
		return Handshake{}, ErrMalformed
	}

	fields := strings.Split(lines[2], "|")
	if len(fields) < 4 {
		return Handshake{}, ErrMalformed
	}

	offset, err := strconv.Atoi(fields[1])
	if err != nil {
		return Handshake{}, ErrMalformed
	}

	hw := strings.Split(fields[3], ":")
	if len(hw) < 4 {
		return Handshake{}, ErrMalformed
	}
	// hw layout: [0] osu version again, [1] mac list, [2] mac hash,
	// [3] unique id, [4] disk id (disk id sometimes absent pre-2018 clients).
	diskID := ""
	if len(hw) >= 5 {
		diskID = hw[4]
	}

	blockPM := len(fields) >= 5 && fields[4] == "1"

	return Handshake{
		Username:         lines[0],
		PasswordMD5:      lines[1],
		OsuVersion:       fields[0],
		UTCOffset:        offset,
		DisplayCity:      safeField(fields, 2),
		MACList:          hw[1],
		MACHash:          hw[2],
		UniqueID:         hw[3],
		DiskID:           diskID,
		BlockNonFriendPM: blockPM,
	}, nil
}

func safeField(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

// SafeUsername lowercases and replaces spaces with underscores, the
// normalization used for the username_safe lookup column.
func SafeUsername(username string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimRight(username, " "), " ", "_"))
}

// IsTournamentClient reports whether the osu-version string marks a
// tournament spectator client (never evicts the user's other session).
func IsTournamentClient(osuVersion string) bool {
	return strings.Contains(osuVersion, "tourney")
}
