// Package collab declares the collaborator interfaces this server
// consumes but does not implement in full: the relational store, the
// cache/pub-sub bus, geolocation, PP calculation, and the chatbot.
// Concrete adapters live alongside the interfaces; the relational store
// itself is implemented by the sibling store package.
package collab

import "context"

// UserRecord is the subset of the users/users_stats tables the login
// pipeline and stats refresh need.
type UserRecord struct {
	UserID         int32
	Username       string
	UsernameSafe   string
	PasswordBcrypt string
	Privileges     uint32
	Country        string
	IsBot          bool
	FrozenUntil    int64 // unix seconds, 0 = not frozen
	Banned         bool
	PendingVerify  bool
}

// Store is the relational collaborator (spec.md §6.4).
type Store interface {
	UserBySafeUsername(ctx context.Context, safeUsername string) (UserRecord, bool, error)
	UserByID(ctx context.Context, userID int32) (UserRecord, bool, error)
	UpdateUserCountry(ctx context.Context, userID int32, country string) error
	RecordIP(ctx context.Context, userID int32, ip string) error
	RecordHardware(ctx context.Context, userID int32, osuVersion, macHash, uniqueID, diskID string) error
	RestrictUser(ctx context.Context, userID int32, reason string) error
	BanUser(ctx context.Context, userID int32, reason string) error
	CountOtherAccountsSharingHardware(ctx context.Context, userID int32, uniqueID, diskID string, wine bool) ([]int32, error)
	StatsFor(ctx context.Context, userID int32, mode uint8) (StatsRecord, error)
}

// StatsRecord is the subset of per-mode user_stats the pub/sub bridge
// re-reads when told a user's cached stats changed.
type StatsRecord struct {
	RankedScore int64
	TotalScore  int64
	Playcount   int32
	Accuracy    float64
	PP          int32
	Rank        int32
}

// Bus is the cache/pub-sub collaborator (spec.md §6.4).
type Bus interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, key string) error
	SAdd(ctx context.Context, key, member string) error
	SRem(ctx context.Context, key, member string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channels []string, handler func(channel, payload string)) error
}

// GeoResult is the outcome of a geolocation lookup.
type GeoResult struct {
	CountryCode string
	Latitude    float32
	Longitude   float32
}

// GeoLocator is the geo collaborator; on error callers fall back to
// {"XX", 0, 0} per spec.md §6.4.
type GeoLocator interface {
	Lookup(ctx context.Context, ip string) (GeoResult, error)
}

// PerformanceResult is the outcome of a PP calculation request.
type PerformanceResult struct {
	PP       float64
	Stars    float64
	AR       float64
	OD       float64
	MaxCombo int32
}

// PerformanceService is the PP collaborator; on timeout callers treat
// the result as zero per spec.md §6.4.
type PerformanceService interface {
	Calculate(ctx context.Context, beatmapID int32, mode uint8, mods uint32, maxCombo int32, accuracy float64, missCount int32, passedObjects int32) (PerformanceResult, error)
}

// BotResponder is the in-server chatbot collaborator.
type BotResponder interface {
	Respond(fromUsername, channelOrUser, message string) string
}
