package store

import "database/sql"

// Channel represents a row in the channels table.
type Channel struct {
	ID            int64
	Name          string
	Description   string
	PublicRead    bool
	PublicWrite   bool
	Hidden        bool
	AutoJoin      bool
	MinPrivileges uint32
}

// GetChannels returns all channels ordered by id.
func (s *Store) GetChannels() ([]Channel, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, public_read, public_write, hidden, auto_join, min_privileges
		 FROM channels ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		var pr, pw, hidden, auto int
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Description, &pr, &pw, &hidden, &auto, &ch.MinPrivileges); err != nil {
			return nil, err
		}
		ch.PublicRead, ch.PublicWrite, ch.Hidden, ch.AutoJoin = pr != 0, pw != 0, hidden != 0, auto != 0
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// CreateChannel inserts a new channel with the given name and returns its id.
func (s *Store) CreateChannel(name, description string, publicRead, publicWrite, autoJoin bool) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO channels(name, description, public_read, public_write, auto_join) VALUES(?,?,?,?,?)`,
		name, description, publicRead, publicWrite, autoJoin,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ChannelCount returns the number of channels currently stored.
func (s *Store) ChannelCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM channels`).Scan(&n)
	return n, err
}

// ---------------------------------------------------------------------------
// Bans
// ---------------------------------------------------------------------------

// Ban represents a row in the bans table.
type Ban struct {
	ID        int64
	UserID    int32
	Reason    string
	BannedBy  string
	DurationS int
	CreatedAt int64
}

// GetBans returns all bans ordered by most recent first.
func (s *Store) GetBans() ([]Ban, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, reason, banned_by, duration_s, created_at FROM bans ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans []Ban
	for rows.Next() {
		var b Ban
		if err := rows.Scan(&b.ID, &b.UserID, &b.Reason, &b.BannedBy, &b.DurationS, &b.CreatedAt); err != nil {
			return nil, err
		}
		bans = append(bans, b)
	}
	return bans, rows.Err()
}

// DeleteBan removes a ban by id.
func (s *Store) DeleteBan(id int64) error {
	res, err := s.db.Exec(`DELETE FROM bans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PurgeExpiredBans removes bans that have passed their duration.
func (s *Store) PurgeExpiredBans() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM bans WHERE duration_s > 0 AND created_at + duration_s <= unixepoch()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---------------------------------------------------------------------------
// Audit log
// ---------------------------------------------------------------------------

// AuditEntry represents one row in the audit_log table.
type AuditEntry struct {
	ID          int64
	ActorID     int
	ActorName   string
	Action      string
	Target      string
	DetailsJSON string
	CreatedAt   int64
}

// InsertAuditLog records an action in the audit log, purging beyond the
// most recent 10,000 entries.
func (s *Store) InsertAuditLog(actorID int, actorName, action, target, detailsJSON string) error {
	if detailsJSON == "" {
		detailsJSON = "{}"
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_log(actor_id, actor_name, action, target, details_json) VALUES(?,?,?,?,?)`,
		actorID, actorName, action, target, detailsJSON,
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM audit_log WHERE id NOT IN (SELECT id FROM audit_log ORDER BY id DESC LIMIT 10000)`)
	return err
}

// GetAuditLog returns audit log entries, most recent first, with
// optional action filter. Pass action="" to return all actions.
func (s *Store) GetAuditLog(action string, limit int) ([]AuditEntry, error) {
	var rows *sql.Rows
	var err error
	if action != "" {
		rows, err = s.db.Query(
			`SELECT id, actor_id, actor_name, action, target, details_json, created_at FROM audit_log WHERE action = ? ORDER BY id DESC LIMIT ?`,
			action, limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT id, actor_id, actor_name, action, target, details_json, created_at FROM audit_log ORDER BY id DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.Target, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
