package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"learnhub/presence-service/models"
	"learnhub/presence-service/utils"
)

const (
	onlineUsersKey       = "online_users"
	presenceKeyPrefix    = "presence:"
	recentLoginKeyPrefix = "recent_login:"
)

const (
	// DefaultInactivityThreshold is how long a user stays online without activity.
	DefaultInactivityThreshold = 15 * time.Minute
	// DefaultRecentLoginWindow is how long a login counts as recent.
	DefaultRecentLoginWindow = 5 * time.Minute
)

// PresenceService tracks which users are online across any number of service
// instances. All state lives in Redis: a sorted set ranking users by last
// activity, a per-user detail hash with a rolling TTL, and a short-lived
// login marker per user.
//
// Multi-key writes go out in one pipeline. Pipelines are not transactions:
// commands from concurrent callers may interleave between the keys of one
// call. The structures can therefore diverge briefly (a crash or timeout
// mid-pipeline included), but never for longer than one inactivity threshold,
// because every read path sweeps stale entries first and IsUserOnline evicts
// stale users on its own.
type PresenceService struct {
	redis             *redis.Client
	logger            *utils.Logger
	inactivityWindow  time.Duration
	recentLoginWindow time.Duration
	now               func() time.Time
}

func NewPresenceService(redisClient *redis.Client, logger *utils.Logger) *PresenceService {
	return &PresenceService{
		redis:             redisClient,
		logger:            logger,
		inactivityWindow:  DefaultInactivityThreshold,
		recentLoginWindow: DefaultRecentLoginWindow,
		now:               time.Now,
	}
}

func (ps *PresenceService) SetInactivityThreshold(d time.Duration) {
	ps.inactivityWindow = d
}

func (ps *PresenceService) SetRecentLoginWindow(d time.Duration) {
	ps.recentLoginWindow = d
}

// AddUser marks a user online. A second login for the same user overwrites
// the index entry and the detail record (re-login semantics) and refreshes
// the recent-login marker.
func (ps *PresenceService) AddUser(ctx context.Context, info models.LoginInfo) error {
	if info.UserID == "" {
		return errors.New("user id is required")
	}

	now := ps.now()
	record := models.PresenceRecord{
		UserID:       info.UserID,
		Email:        info.Email,
		LoginTime:    info.LoginTime,
		LastActivity: now,
		IPAddress:    info.IPAddress,
		UserAgent:    info.UserAgent,
	}

	pipe := ps.redis.Pipeline()
	pipe.ZAdd(ctx, onlineUsersKey, redis.Z{Score: float64(now.UnixMilli()), Member: info.UserID})
	pipe.HSet(ctx, presenceKeyPrefix+info.UserID, record.HashFields())
	pipe.Expire(ctx, presenceKeyPrefix+info.UserID, ps.inactivityWindow)
	pipe.Set(ctx, recentLoginKeyPrefix+info.UserID, "1", ps.recentLoginWindow)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to add user to presence: %w", err)
	}

	ps.logger.Info("User marked online", "user_id", info.UserID)
	return nil
}

// UpdateActivity bumps the user's last-activity timestamp in the index and
// the detail record, and extends the record's TTL. It is called on every
// authenticated request, so it is a single pipelined round trip and never
// touches the recent-login marker.
func (ps *PresenceService) UpdateActivity(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("user id is required")
	}

	now := ps.now()

	pipe := ps.redis.Pipeline()
	pipe.ZAdd(ctx, onlineUsersKey, redis.Z{Score: float64(now.UnixMilli()), Member: userID})
	pipe.HSet(ctx, presenceKeyPrefix+userID, "last_activity", strconv.FormatInt(now.UnixMilli(), 10))
	pipe.Expire(ctx, presenceKeyPrefix+userID, ps.inactivityWindow)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}

	return nil
}

// RemoveUser marks a user offline, deleting the index entry, the detail
// record and the recent-login marker. Removing an absent user is a no-op.
func (ps *PresenceService) RemoveUser(ctx context.Context, userID string) error {
	pipe := ps.redis.Pipeline()
	pipe.ZRem(ctx, onlineUsersKey, userID)
	pipe.Del(ctx, presenceKeyPrefix+userID)
	pipe.Del(ctx, recentLoginKeyPrefix+userID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove user from presence: %w", err)
	}

	ps.logger.Info("User marked offline", "user_id", userID)
	return nil
}

// IsUserOnline reports whether the user's last activity is within the
// inactivity threshold. A stale index entry is evicted on the spot, so
// staleness self-corrects even when no sweep runs.
func (ps *PresenceService) IsUserOnline(ctx context.Context, userID string) (bool, error) {
	score, err := ps.redis.ZScore(ctx, onlineUsersKey, userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read activity index: %w", err)
	}

	lastActivity := time.UnixMilli(int64(score))
	if ps.now().Sub(lastActivity) > ps.inactivityWindow {
		if err := ps.RemoveUser(ctx, userID); err != nil {
			return false, err
		}
		return false, nil
	}

	return true, nil
}

// CleanupInactiveUsers evicts every user whose last activity is older than
// the inactivity threshold: one range-delete on the index, then batched
// deletes of each evicted user's record and marker. Returns the number of
// users evicted. Cost is proportional to the number of stale entries, not
// the online population.
func (ps *PresenceService) CleanupInactiveUsers(ctx context.Context) (int, error) {
	cutoff := strconv.FormatInt(ps.now().Add(-ps.inactivityWindow).UnixMilli(), 10)

	stale, err := ps.redis.ZRangeByScore(ctx, onlineUsersKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoff,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to select inactive users: %w", err)
	}

	if len(stale) == 0 {
		return 0, nil
	}

	pipe := ps.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, onlineUsersKey, "-inf", cutoff)
	for _, userID := range stale {
		pipe.Del(ctx, presenceKeyPrefix+userID, recentLoginKeyPrefix+userID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to evict inactive users: %w", err)
	}

	ps.logger.Info("Evicted inactive users", "count", len(stale))
	return len(stale), nil
}

// GetActiveUsersCount sweeps stale entries, then returns the index
// cardinality. Cheaper sibling of GetOnlineStats for callers that only need
// the count.
func (ps *PresenceService) GetActiveUsersCount(ctx context.Context) (int, error) {
	if _, err := ps.CleanupInactiveUsers(ctx); err != nil {
		return 0, err
	}

	total, err := ps.redis.ZCard(ctx, onlineUsersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count online users: %w", err)
	}

	return int(total), nil
}

// GetOnlineStats sweeps stale entries, then computes the aggregate counters.
// Recent logins are counted by scanning the marker keyspace, which is linear
// in the number of logins inside the window; markers expire after minutes,
// so the scan stays small. Role breakdown is a placeholder: role is not
// tracked here, so every bucket is zero.
func (ps *PresenceService) GetOnlineStats(ctx context.Context) (models.OnlineStats, error) {
	if _, err := ps.CleanupInactiveUsers(ctx); err != nil {
		return models.OnlineStats{}, err
	}

	total, err := ps.redis.ZCard(ctx, onlineUsersKey).Result()
	if err != nil {
		return models.OnlineStats{}, fmt.Errorf("failed to count online users: %w", err)
	}

	recentLogins := 0
	iter := ps.redis.Scan(ctx, 0, recentLoginKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		recentLogins++
	}
	if err := iter.Err(); err != nil {
		return models.OnlineStats{}, fmt.Errorf("failed to count recent logins: %w", err)
	}

	usersByRole := make(map[string]int, len(models.RoleNames))
	for _, role := range models.RoleNames {
		usersByRole[role] = 0
	}

	return models.OnlineStats{
		TotalOnline:  int(total),
		UsersByRole:  usersByRole,
		RecentLogins: recentLogins,
	}, nil
}

// GetOnlineUsers sweeps stale entries, then returns one page of online users
// ordered by most recent activity. A user whose detail record expired just
// ahead of the index sweep is dropped from the page rather than failing the
// call, so a page may come back shorter than requested even when more pages
// exist. No snapshot is held across pages: concurrent activity can reorder
// users between fetches.
func (ps *PresenceService) GetOnlineUsers(ctx context.Context, page, pageSize int) ([]models.PresenceRecord, error) {
	if _, err := ps.CleanupInactiveUsers(ctx); err != nil {
		return nil, err
	}

	start := int64(page-1) * int64(pageSize)
	stop := start + int64(pageSize) - 1

	userIDs, err := ps.redis.ZRevRange(ctx, onlineUsersKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list online users: %w", err)
	}

	if len(userIDs) == 0 {
		return []models.PresenceRecord{}, nil
	}

	pipe := ps.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	for i, userID := range userIDs {
		cmds[i] = pipe.HGetAll(ctx, presenceKeyPrefix+userID)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to fetch presence records: %w", err)
	}

	users := make([]models.PresenceRecord, 0, len(userIDs))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			ps.logger.Warn("Skipping presence record", "user_id", userIDs[i], "error", err)
			continue
		}

		record, ok := models.RecordFromHash(fields)
		if !ok {
			// Record expired or is corrupt while the index entry survived.
			continue
		}
		users = append(users, record)
	}

	return users, nil
}
