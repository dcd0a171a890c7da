package pubsub

import (
	"context"
	"testing"

	"bancho/server/internal/chat"
	"bancho/server/internal/collab"
	"bancho/server/internal/session"
	"bancho/server/internal/stream"
)

type fakeSessions struct {
	byUserID map[int32]*session.Session
}

func (f *fakeSessions) ByID(id string) (*session.Session, bool) {
	for _, s := range f.byUserID {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}

func (f *fakeSessions) ByUserID(userID int32) (*session.Session, bool) {
	s, ok := f.byUserID[userID]
	return s, ok
}

type fakeDisconnector struct {
	disconnected []*session.Session
}

func (f *fakeDisconnector) Disconnect(sess *session.Session) {
	f.disconnected = append(f.disconnected, sess)
}

type fakeStore struct {
	users map[int32]collab.UserRecord
	stats map[int32]collab.StatsRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[int32]collab.UserRecord), stats: make(map[int32]collab.StatsRecord)}
}

func (f *fakeStore) UserBySafeUsername(ctx context.Context, safeUsername string) (collab.UserRecord, bool, error) {
	return collab.UserRecord{}, false, nil
}

func (f *fakeStore) UserByID(ctx context.Context, userID int32) (collab.UserRecord, bool, error) {
	u, ok := f.users[userID]
	return u, ok, nil
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
	st, ok := f.stats[userID]
	if !ok {
		return collab.StatsRecord{}, nil
	}
	return st, nil
}

func testBridge() (*Bridge, *fakeSessions, *fakeDisconnector, *fakeStore) {
	sessions := &fakeSessions{byUserID: make(map[int32]*session.Session)}
	disc := &fakeDisconnector{}
	st := newFakeStore()
	streams := stream.NewRegistry()
	channels := chat.NewRegistry()
	channels.Add(&chat.Channel{Name: "#osu", PublicRead: true, PublicWrite: true})
	chatSvc := chat.NewService(channels, streams, sessions, nil, nil)

	b := NewBridge(Config{BotUsername: "BanchoBot", BotUserID: 3}, nil, sessions, disc, st, streams, chatSvc)
	return b, sessions, disc, st
}

func TestHandleDisconnect(t *testing.T) {
	b, sessions, disc, _ := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivPublic|session.PrivNormal)
	sessions.byUserID[10] = sess

	b.handle(context.Background(), "disconnect", `{"userID":10}`)
	if len(disc.disconnected) != 1 || disc.disconnected[0] != sess {
		t.Fatal("expected the disconnect channel to tear the matching session down")
	}
}

func TestHandleBan(t *testing.T) {
	b, sessions, disc, _ := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivPublic|session.PrivNormal)
	sessions.byUserID[10] = sess

	b.handle(context.Background(), "ban", `{"userID":10}`)
	if len(sess.FetchQueue()) == 0 {
		t.Fatal("expected an account-restricted packet to be enqueued")
	}
	if len(disc.disconnected) != 1 {
		t.Fatal("expected ban to also disconnect the session")
	}
}

func TestHandleBanUnknownUserIsNoop(t *testing.T) {
	b, _, disc, _ := testBridge()
	b.handle(context.Background(), "ban", `{"userID":999}`)
	if len(disc.disconnected) != 0 {
		t.Fatal("expected no disconnect for a user with no live session")
	}
}

func TestHandleSilence(t *testing.T) {
	b, sessions, _, _ := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivPublic|session.PrivNormal)
	sessions.byUserID[10] = sess

	b.handle(context.Background(), "silence", `{"userID":10,"seconds":60}`)
	if sess.SilencedFor() <= 0 {
		t.Fatal("expected the session to be silenced")
	}
	if len(sess.FetchQueue()) == 0 {
		t.Fatal("expected a silence-end notification to be enqueued")
	}
}

func TestHandleNotification(t *testing.T) {
	b, sessions, _, _ := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivPublic|session.PrivNormal)
	sessions.byUserID[10] = sess

	b.handle(context.Background(), "notification", `{"userID":10,"message":"hello"}`)
	if len(sess.FetchQueue()) == 0 {
		t.Fatal("expected a notification packet to be enqueued")
	}
}

func TestHandleUpdateCachedStats(t *testing.T) {
	b, sessions, _, st := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivPublic|session.PrivNormal)
	sessions.byUserID[10] = sess
	st.stats[10] = collab.StatsRecord{RankedScore: 1000, PP: 200, Rank: 5}

	b.handle(context.Background(), "update_cached_stats", `{"userID":10,"mode":0}`)
	if sess.GetStats().RankedScore != 1000 {
		t.Fatalf("expected stats to be refreshed from the store, got %+v", sess.GetStats())
	}
	if len(sess.FetchQueue()) == 0 {
		t.Fatal("expected a userStats packet to be enqueued after refresh")
	}
}

func TestHandleRefreshPrivs(t *testing.T) {
	b, sessions, _, st := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivNormal)
	sessions.byUserID[10] = sess
	st.users[10] = collab.UserRecord{UserID: 10, Privileges: session.PrivPublic | session.PrivNormal | session.PrivAdmin}

	b.handle(context.Background(), "refresh_privs", `{"userID":10}`)
	if !sess.Admin {
		t.Fatal("expected the refreshed privileges to grant admin")
	}
	if sess.Restricted.Load() {
		t.Fatal("expected the refreshed privileges to lift restriction")
	}
	if len(sess.FetchQueue()) == 0 {
		t.Fatal("expected a banchoPrivileges packet to be enqueued")
	}
}

func TestHandleBotMsgBroadcastsToChannel(t *testing.T) {
	b, sessions, _, _ := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivPublic|session.PrivNormal)
	sessions.byUserID[10] = sess
	b.Streams.Join(stream.ChatName("#osu"), sess.ID)

	b.handle(context.Background(), "bot_msg", `{"channel":"#osu","message":"hi there"}`)
	if len(sess.FetchQueue()) == 0 {
		t.Fatal("expected the joined session to receive the bot message")
	}
}

func TestHandleBotMsgUnknownChannelIsNoop(t *testing.T) {
	b, sessions, _, _ := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivPublic|session.PrivNormal)
	sessions.byUserID[10] = sess
	b.Streams.Join(stream.ChatName("#nope"), sess.ID)

	b.handle(context.Background(), "bot_msg", `{"channel":"#nope","message":"hi there"}`)
	if len(sess.FetchQueue()) != 0 {
		t.Fatal("expected no broadcast for a channel the registry doesn't know about")
	}
}

func TestHandleReloadSettingsDoesNotPanic(t *testing.T) {
	b, _, _, _ := testBridge()
	b.handle(context.Background(), "reload_settings", ``)
}

func TestHandleMalformedPayloadIsLogged(t *testing.T) {
	b, sessions, disc, _ := testBridge()
	sess := session.New("s1", 10, "tester", session.PrivPublic|session.PrivNormal)
	sessions.byUserID[10] = sess

	b.handle(context.Background(), "disconnect", `not json`)
	if len(disc.disconnected) != 0 {
		t.Fatal("expected a malformed payload to be dropped without acting on any session")
	}
}
