package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"learnhub/presence-service/models"
	"learnhub/presence-service/utils"
)

var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*PresenceService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ps := NewPresenceService(client, utils.NewLogger())
	setClock(ps, baseTime)
	return ps, mr
}

func setClock(ps *PresenceService, at time.Time) {
	ps.now = func() time.Time { return at }
}

func login(userID string) models.LoginInfo {
	return models.LoginInfo{
		UserID:    userID,
		Email:     userID + "@example.com",
		LoginTime: baseTime,
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	}
}

func TestAddUserMarksOnline(t *testing.T) {
	ps, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))

	online, err := ps.IsUserOnline(ctx, "alice")
	require.NoError(t, err)
	require.True(t, online)

	require.True(t, mr.Exists("presence:alice"))
	require.True(t, mr.Exists("recent_login:alice"))
	require.Equal(t, DefaultInactivityThreshold, mr.TTL("presence:alice"))
	require.Equal(t, DefaultRecentLoginWindow, mr.TTL("recent_login:alice"))
}

func TestAddUserRequiresUserID(t *testing.T) {
	ps, _ := newTestService(t)

	require.Error(t, ps.AddUser(context.Background(), models.LoginInfo{Email: "x@example.com"}))
}

func TestUpdateActivityResetsStalenessClock(t *testing.T) {
	ps, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))

	// Ten minutes in, activity is refreshed; ten minutes after that the user
	// is still inside the threshold measured from the refresh.
	setClock(ps, baseTime.Add(10*time.Minute))
	require.NoError(t, ps.UpdateActivity(ctx, "alice"))

	setClock(ps, baseTime.Add(20*time.Minute))
	online, err := ps.IsUserOnline(ctx, "alice")
	require.NoError(t, err)
	require.True(t, online)
}

func TestInactiveUserGoesOffline(t *testing.T) {
	ps, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))

	setClock(ps, baseTime.Add(16*time.Minute))

	online, err := ps.IsUserOnline(ctx, "alice")
	require.NoError(t, err)
	require.False(t, online)

	users, err := ps.GetOnlineUsers(ctx, 1, 10)
	require.NoError(t, err)
	require.Empty(t, users)
}

func TestIsUserOnlineSelfEvicts(t *testing.T) {
	ps, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))
	setClock(ps, baseTime.Add(16*time.Minute))

	online, err := ps.IsUserOnline(ctx, "alice")
	require.NoError(t, err)
	require.False(t, online)

	// The read itself evicted the user, so a sweep finds nothing left.
	require.False(t, mr.Exists("presence:alice"))
	require.False(t, mr.Exists("recent_login:alice"))

	evicted, err := ps.CleanupInactiveUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, evicted)
}

func TestGetActiveUsersCount(t *testing.T) {
	ps, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		require.NoError(t, ps.AddUser(ctx, login(id)))
	}

	count, err := ps.GetActiveUsersCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, count)
}

func TestCleanupEvictsExactlyTheStaleSet(t *testing.T) {
	ps, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))
	require.NoError(t, ps.AddUser(ctx, login("bob")))

	setClock(ps, baseTime.Add(10*time.Minute))
	require.NoError(t, ps.AddUser(ctx, login("carol")))

	// alice and bob are 16 minutes stale, carol only 6.
	setClock(ps, baseTime.Add(16*time.Minute))

	evicted, err := ps.CleanupInactiveUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, evicted)

	count, err := ps.GetActiveUsersCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.False(t, mr.Exists("presence:alice"))
	require.False(t, mr.Exists("recent_login:alice"))
	require.False(t, mr.Exists("presence:bob"))
	require.True(t, mr.Exists("presence:carol"))
}

func TestGetOnlineUsersPagination(t *testing.T) {
	ps, _ := newTestService(t)
	ctx := context.Background()

	ids := []string{"u1", "u2", "u3", "u4", "u5"}
	for i, id := range ids {
		setClock(ps, baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, ps.AddUser(ctx, login(id)))
	}
	setClock(ps, baseTime.Add(5*time.Minute))

	page, err := ps.GetOnlineUsers(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "u5", page[0].UserID)
	require.Equal(t, "u4", page[1].UserID)

	page, err = ps.GetOnlineUsers(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, "u1", page[0].UserID)
}

func TestGetOnlineUsersSkipsMissingRecords(t *testing.T) {
	ps, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))
	setClock(ps, baseTime.Add(time.Minute))
	require.NoError(t, ps.AddUser(ctx, login("bob")))

	// bob's record expired just before his index entry would be swept.
	mr.Del("presence:bob")

	users, err := ps.GetOnlineUsers(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "alice", users[0].UserID)
}

func TestRecentLoginsExpireIndependently(t *testing.T) {
	ps, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))

	stats, err := ps.GetOnlineStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalOnline)
	require.Equal(t, 1, stats.RecentLogins)
	for _, role := range models.RoleNames {
		require.Zero(t, stats.UsersByRole[role])
	}

	// Six minutes later the login marker has expired but the user is still
	// well inside the inactivity threshold.
	mr.FastForward(6 * time.Minute)
	setClock(ps, baseTime.Add(6*time.Minute))

	stats, err = ps.GetOnlineStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalOnline)
	require.Equal(t, 0, stats.RecentLogins)

	online, err := ps.IsUserOnline(ctx, "alice")
	require.NoError(t, err)
	require.True(t, online)
}

func TestRemoveUserIsIdempotent(t *testing.T) {
	ps, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))

	require.NoError(t, ps.RemoveUser(ctx, "alice"))
	require.NoError(t, ps.RemoveUser(ctx, "alice"))

	online, err := ps.IsUserOnline(ctx, "alice")
	require.NoError(t, err)
	require.False(t, online)

	require.False(t, mr.Exists("presence:alice"))
	require.False(t, mr.Exists("recent_login:alice"))
}

func TestStaleUserFullLifecycle(t *testing.T) {
	ps, _ := newTestService(t)
	ctx := context.Background()

	// Login at t=0, one activity refresh at t=100s, then silence.
	require.NoError(t, ps.AddUser(ctx, login("A")))
	setClock(ps, baseTime.Add(100*time.Second))
	require.NoError(t, ps.UpdateActivity(ctx, "A"))

	// At t=1000s the last activity is 900s old and past the threshold.
	setClock(ps, baseTime.Add(1000*time.Second))

	evicted, err := ps.CleanupInactiveUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, evicted)

	count, err := ps.GetActiveUsersCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	online, err := ps.IsUserOnline(ctx, "A")
	require.NoError(t, err)
	require.False(t, online)
}

func TestReloginOverwritesRecord(t *testing.T) {
	ps, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, ps.AddUser(ctx, login("alice")))

	setClock(ps, baseTime.Add(2*time.Minute))
	second := login("alice")
	second.IPAddress = "10.0.0.2"
	require.NoError(t, ps.AddUser(ctx, second))

	users, err := ps.GetOnlineUsers(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "10.0.0.2", users[0].IPAddress)
	require.True(t, users[0].LastActivity.Equal(baseTime.Add(2*time.Minute)))
}
