package collab

import (
	"context"

	"bancho/server/store"
)

// DBStore adapts *store.Store to the Store interface. The underlying
// store package talks to SQLite synchronously, so ctx here is only
// honored for cancellation checks before each call, not threaded into
// the driver.
type DBStore struct {
	DB *store.Store
}

// NewDBStore wraps a store.Store as a Store collaborator.
func NewDBStore(db *store.Store) *DBStore { return &DBStore{DB: db} }

func (a *DBStore) UserBySafeUsername(ctx context.Context, safeUsername string) (UserRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, false, err
	}
	u, ok, err := a.DB.UserBySafeUsername(safeUsername)
	if err != nil || !ok {
		return UserRecord{}, ok, err
	}
	banned, _, err := a.DB.IsUserBanned(int32(u.ID))
	if err != nil {
		return UserRecord{}, false, err
	}
	return UserRecord{
		UserID:         int32(u.ID),
		Username:       u.Username,
		UsernameSafe:   u.UsernameSafe,
		PasswordBcrypt: u.PasswordBcrypt,
		Privileges:     u.Privileges,
		Country:        u.Country,
		IsBot:          u.IsBot,
		FrozenUntil:    u.FrozenUntil,
		Banned:         banned,
	}, true, nil
}

func (a *DBStore) UserByID(ctx context.Context, userID int32) (UserRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return UserRecord{}, false, err
	}
	u, ok, err := a.DB.UserByID(userID)
	if err != nil || !ok {
		return UserRecord{}, ok, err
	}
	banned, _, err := a.DB.IsUserBanned(int32(u.ID))
	if err != nil {
		return UserRecord{}, false, err
	}
	return UserRecord{
		UserID:         int32(u.ID),
		Username:       u.Username,
		UsernameSafe:   u.UsernameSafe,
		PasswordBcrypt: u.PasswordBcrypt,
		Privileges:     u.Privileges,
		Country:        u.Country,
		IsBot:          u.IsBot,
		FrozenUntil:    u.FrozenUntil,
		Banned:         banned,
	}, true, nil
}

func (a *DBStore) StatsFor(ctx context.Context, userID int32, mode uint8) (StatsRecord, error) {
	if err := ctx.Err(); err != nil {
		return StatsRecord{}, err
	}
	st, err := a.DB.GetUserStats(userID, mode)
	if err != nil {
		return StatsRecord{}, err
	}
	return StatsRecord{
		RankedScore: st.RankedScore,
		TotalScore:  st.TotalScore,
		Playcount:   st.Playcount,
		Accuracy:    st.Accuracy,
		PP:          st.PP,
		Rank:        st.Rank,
	}, nil
}

func (a *DBStore) UpdateUserCountry(ctx context.Context, userID int32, country string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.DB.UpdateUserCountry(userID, country)
}

func (a *DBStore) RecordIP(ctx context.Context, userID int32, ip string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.DB.RecordIP(userID, ip)
}

func (a *DBStore) RecordHardware(ctx context.Context, userID int32, osuVersion, macHash, uniqueID, diskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.DB.RecordHardware(userID, osuVersion, macHash, uniqueID, diskID)
}

func (a *DBStore) RestrictUser(ctx context.Context, userID int32, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.DB.RestrictUser(userID, reason)
}

func (a *DBStore) BanUser(ctx context.Context, userID int32, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return a.DB.BanUser(userID, reason)
}

func (a *DBStore) CountOtherAccountsSharingHardware(ctx context.Context, userID int32, uniqueID, diskID string, wine bool) ([]int32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.DB.CountOtherAccountsSharingHardware(userID, uniqueID, diskID, wine)
}
