package store

import (
	"database/sql"
	"time"
)

// User represents a row in the users table joined with nothing else;
// stats are fetched separately per-mode.
type User struct {
	ID             int64
	Username       string
	UsernameSafe   string
	PasswordBcrypt string
	Privileges     uint32
	Country        string
	IsBot          bool
	FrozenUntil    int64
}

// UserBySafeUsername looks up a user by their normalized username.
func (s *Store) UserBySafeUsername(safeUsername string) (User, bool, error) {
	var u User
	var isBot int
	err := s.db.QueryRow(
		`SELECT id, username, username_safe, password_bcrypt, privileges, country, is_bot, frozen_until
		 FROM users WHERE username_safe = ?`, safeUsername,
	).Scan(&u.ID, &u.Username, &u.UsernameSafe, &u.PasswordBcrypt, &u.Privileges, &u.Country, &isBot, &u.FrozenUntil)
	if err == sql.ErrNoRows {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	u.IsBot = isBot != 0
	return u, true, nil
}

// UserByID looks up a user by their numeric id.
func (s *Store) UserByID(userID int32) (User, bool, error) {
	var u User
	var isBot int
	err := s.db.QueryRow(
		`SELECT id, username, username_safe, password_bcrypt, privileges, country, is_bot, frozen_until
		 FROM users WHERE id = ?`, userID,
	).Scan(&u.ID, &u.Username, &u.UsernameSafe, &u.PasswordBcrypt, &u.Privileges, &u.Country, &isBot, &u.FrozenUntil)
	if err == sql.ErrNoRows {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	u.IsBot = isBot != 0
	return u, true, nil
}

// CreateUser inserts a new user and returns its id. Used by tests and
// administrative tooling; the public protocol has no self-registration.
func (s *Store) CreateUser(username, usernameSafe, passwordBcrypt string, privileges uint32) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users(username, username_safe, password_bcrypt, privileges) VALUES(?,?,?,?)`,
		username, usernameSafe, passwordBcrypt, privileges,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateUserCountry persists a freshly-resolved country code.
func (s *Store) UpdateUserCountry(userID int32, country string) error {
	_, err := s.db.Exec(`UPDATE users SET country = ? WHERE id = ?`, country, userID)
	return err
}

// RestrictUser sets privilege bit 0 (public visibility) off and records
// the reason in the audit log, per spec.md's "restrict-with-log" flow.
func (s *Store) RestrictUser(userID int32, reason string) error {
	_, err := s.db.Exec(`UPDATE users SET privileges = privileges & ~1 WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return s.InsertAuditLog(int(userID), "", "restrict", "", reason)
}

// BanUser records a permanent ban.
func (s *Store) BanUser(userID int32, reason string) error {
	_, err := s.db.Exec(
		`INSERT INTO bans(user_id, reason, banned_by, duration_s) VALUES(?,?,?,0)`,
		userID, reason, "system",
	)
	return err
}

// IsUserBanned checks if the given user is banned (considering temp ban expiry).
func (s *Store) IsUserBanned(userID int32) (bool, string, error) {
	var reason string
	err := s.db.QueryRow(
		`SELECT reason FROM bans WHERE user_id = ? AND (duration_s = 0 OR created_at + duration_s > unixepoch()) LIMIT 1`,
		userID,
	).Scan(&reason)
	if err == sql.ErrNoRows {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, reason, nil
}

// RecordIP upserts the user/IP pair's first/last-seen timestamps.
func (s *Store) RecordIP(userID int32, ip string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO ip_history(user_id, ip, first_seen, last_seen) VALUES(?,?,?,?)
		 ON CONFLICT(user_id, ip) DO UPDATE SET last_seen = excluded.last_seen`,
		userID, ip, now, now,
	)
	return err
}

// RecordHardware upserts the user/HWID tuple's first/last-seen timestamps.
func (s *Store) RecordHardware(userID int32, osuVersion, macHash, uniqueID, diskID string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO hw_history(user_id, osu_version, mac_hash, unique_id, disk_id, first_seen, last_seen)
		 VALUES(?,?,?,?,?,?,?)
		 ON CONFLICT(user_id, mac_hash, unique_id, disk_id) DO UPDATE SET last_seen = excluded.last_seen`,
		userID, osuVersion, macHash, uniqueID, diskID, now, now,
	)
	return err
}

// CountOtherAccountsSharingHardware returns other user ids whose
// recorded hardware matches on uniqueID+diskID (or on uniqueID alone
// when wine is true, per spec.md §4.7's wine-signature carve-out).
func (s *Store) CountOtherAccountsSharingHardware(userID int32, uniqueID, diskID string, wine bool) ([]int32, error) {
	var rows *sql.Rows
	var err error
	if wine {
		rows, err = s.db.Query(
			`SELECT DISTINCT user_id FROM hw_history WHERE unique_id = ? AND user_id != ?`,
			uniqueID, userID,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT DISTINCT user_id FROM hw_history WHERE unique_id = ? AND disk_id = ? AND user_id != ?`,
			uniqueID, diskID, userID,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UserStats is the per-mode stats snapshot.
type UserStats struct {
	RankedScore int64
	TotalScore  int64
	Playcount   int32
	Accuracy    float64
	PP          int32
	Rank        int32
}

// GetUserStats returns the stats row for userID/mode, zero-valued if absent.
func (s *Store) GetUserStats(userID int32, mode uint8) (UserStats, error) {
	var st UserStats
	err := s.db.QueryRow(
		`SELECT ranked_score, total_score, playcount, accuracy, pp, rank_cached
		 FROM user_stats WHERE user_id = ? AND mode = ?`, userID, mode,
	).Scan(&st.RankedScore, &st.TotalScore, &st.Playcount, &st.Accuracy, &st.PP, &st.Rank)
	if err == sql.ErrNoRows {
		return UserStats{}, nil
	}
	return st, err
}
