package login

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"bancho/server/internal/chat"
	"bancho/server/internal/collab"
	"bancho/server/internal/session"
	"bancho/server/internal/stream"
	"bancho/server/internal/wire"
)

type fakeSessions struct {
	byID map[string]*session.Session
}

func (f *fakeSessions) ByID(id string) (*session.Session, bool) {
	s, ok := f.byID[id]
	return s, ok
}

func (f *fakeSessions) ByUserID(userID int32) (*session.Session, bool) {
	for _, s := range f.byID {
		if s.UserID == userID {
			return s, true
		}
	}
	return nil, false
}

type fakeStore struct {
	users map[string]collab.UserRecord
}

func newFakeStore() *fakeStore { return &fakeStore{users: make(map[string]collab.UserRecord)} }

func (f *fakeStore) addUser(username, passwordMD5 string, privileges uint32) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(passwordMD5), bcrypt.MinCost)
	f.users[SafeUsername(username)] = collab.UserRecord{
		UserID:         int32(len(f.users) + 1),
		Username:       username,
		UsernameSafe:   SafeUsername(username),
		PasswordBcrypt: string(hash),
		Privileges:     privileges,
		Country:        "XX",
	}
}

func (f *fakeStore) UserBySafeUsername(ctx context.Context, safeUsername string) (collab.UserRecord, bool, error) {
	u, ok := f.users[safeUsername]
	return u, ok, nil
}

func (f *fakeStore) UserByID(ctx context.Context, userID int32) (collab.UserRecord, bool, error) {
	for _, u := range f.users {
		if u.UserID == userID {
			return u, true, nil
		}
	}
	return collab.UserRecord{}, false, nil
}

func (f *fakeStore) UpdateUserCountry(ctx context.Context, userID int32, country string) error { return nil }
func (f *fakeStore) RecordIP(ctx context.Context, userID int32, ip string) error                { return nil }
func (f *fakeStore) RecordHardware(ctx context.Context, userID int32, osuVersion, macHash, uniqueID, diskID string) error {
	return nil
}
func (f *fakeStore) RestrictUser(ctx context.Context, userID int32, reason string) error { return nil }
func (f *fakeStore) BanUser(ctx context.Context, userID int32, reason string) error      { return nil }
func (f *fakeStore) CountOtherAccountsSharingHardware(ctx context.Context, userID int32, uniqueID, diskID string, wine bool) ([]int32, error) {
	return nil, nil
}
func (f *fakeStore) StatsFor(ctx context.Context, userID int32, mode uint8) (collab.StatsRecord, error) {
	return collab.StatsRecord{}, nil
}

func handshakeBody(username, passwordMD5, osuVersion string) string {
	return strings.Join([]string{
		username,
		passwordMD5,
		osuVersion + "|24|1|abc:mac:hash:unique:disk|0",
	}, "\n")
}

func newTestPipeline(st *fakeStore) (*Pipeline, *fakeSessions) {
	sessions := session.NewRegistry()
	streams := stream.NewRegistry()
	channels := chat.NewRegistry()
	channels.Add(&chat.Channel{Name: "#osu", PublicRead: true, PublicWrite: true, AutoJoin: true})

	fake := &fakeSessions{byID: make(map[string]*session.Session)}
	limiters := map[string]*rate.Limiter{}
	chatSvc := chat.NewService(channels, streams, fake, nil, func(id string) *rate.Limiter {
		if l, ok := limiters[id]; ok {
			return l
		}
		l := rate.NewLimiter(rate.Inf, 100)
		limiters[id] = l
		return l
	})

	p := NewPipeline(Config{
		ServerName:      "test!",
		MinClientYear:   2016,
		AdminChannel:    "#admin",
		DefaultChannels: []string{"#osu"},
	}, sessions, streams, chatSvc, st, nil)
	return p, fake
}

func TestHandleSuccessfulLogin(t *testing.T) {
	st := newFakeStore()
	st.addUser("tester", "deadbeef", session.PrivPublic|session.PrivNormal)
	p, _ := newTestPipeline(st)

	result := p.Handle(context.Background(), handshakeBody("tester", "deadbeef", "b20200101.2"), "127.0.0.1")
	if result.Session == nil {
		t.Fatalf("expected a session on successful login, got none (queued=%d bytes)", len(result.Queued))
	}
	if len(result.Queued) == 0 {
		t.Fatal("expected a non-empty welcome sequence")
	}
	if !result.Session.InChannel("#osu") {
		t.Fatal("expected the session to auto-join the default channel")
	}

	frames, err := wire.ReadAllFrames(result.Queued)
	if err != nil {
		t.Fatalf("ReadAllFrames: %v", err)
	}
	if len(frames) == 0 {
		t.Fatal("expected at least one queued frame")
	}
	last := frames[len(frames)-1]
	if last.ID != wire.ServerNotification {
		t.Fatalf("expected the welcome sequence to close with a notification packet, got id %d", last.ID)
	}

	var channelInfoCount int
	for _, f := range frames {
		if f.ID == wire.ServerChannelInfo {
			channelInfoCount++
		}
	}
	if channelInfoCount != 1 {
		t.Fatalf("expected exactly one channel-info packet for the single public channel, got %d", channelInfoCount)
	}
}

func TestHandleWrongPassword(t *testing.T) {
	st := newFakeStore()
	st.addUser("tester", "deadbeef", session.PrivPublic|session.PrivNormal)
	p, _ := newTestPipeline(st)

	result := p.Handle(context.Background(), handshakeBody("tester", "wrongpass", "b20200101.2"), "127.0.0.1")
	if result.Session != nil {
		t.Fatal("expected login to fail on wrong password")
	}
}

func TestHandleUnknownUser(t *testing.T) {
	st := newFakeStore()
	p, _ := newTestPipeline(st)

	result := p.Handle(context.Background(), handshakeBody("ghost", "deadbeef", "b20200101.2"), "127.0.0.1")
	if result.Session != nil {
		t.Fatal("expected login to fail for an unknown user")
	}
	if len(result.Queued) == 0 {
		t.Fatal("expected a notification plus loginFailed packet")
	}
}

func TestHandleMalformedHandshake(t *testing.T) {
	st := newFakeStore()
	p, _ := newTestPipeline(st)

	result := p.Handle(context.Background(), "just one line", "127.0.0.1")
	if result.Session != nil {
		t.Fatal("expected login to fail on a malformed handshake body")
	}
}

func TestHandleOutdatedClientRestricted(t *testing.T) {
	st := newFakeStore()
	st.addUser("tester", "deadbeef", session.PrivPublic|session.PrivNormal)
	p, _ := newTestPipeline(st)

	result := p.Handle(context.Background(), handshakeBody("tester", "deadbeef", "b20100101.2"), "127.0.0.1")
	if result.Session != nil {
		t.Fatal("expected a first-time outdated-client login to be restricted and rejected, not granted a session")
	}
}
