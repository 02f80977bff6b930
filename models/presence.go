package models

import (
	"strconv"
	"time"
)

// RoleNames are the role buckets reported by OnlineStats. Role is not tracked
// by this service yet, so the per-role counts are always zero until the
// identity service starts stamping a role claim into presence records.
var RoleNames = []string{"student", "instructor", "admin"}

// PresenceRecord is the per-user detail record kept alongside the activity
// index. It lives in a Redis hash with a rolling TTL equal to the inactivity
// threshold, so a record can expire slightly before its index entry is swept.
type PresenceRecord struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
}

// LoginInfo carries the identifying data captured at login time.
type LoginInfo struct {
	UserID    string
	Email     string
	LoginTime time.Time
	IPAddress string
	UserAgent string
}

// OnlineStats is computed on demand and never persisted.
type OnlineStats struct {
	TotalOnline  int            `json:"total_online"`
	UsersByRole  map[string]int `json:"users_by_role"`
	RecentLogins int            `json:"recent_logins"`
}

// Hash field names for the presence record.
const (
	fieldUserID       = "user_id"
	fieldEmail        = "email"
	fieldLoginTime    = "login_time"
	fieldLastActivity = "last_activity"
	fieldIPAddress    = "ip_address"
	fieldUserAgent    = "user_agent"
)

// HashFields serializes the record for HSET. Timestamps are stored as epoch
// milliseconds so they order and parse without timezone concerns.
func (r PresenceRecord) HashFields() map[string]string {
	return map[string]string{
		fieldUserID:       r.UserID,
		fieldEmail:        r.Email,
		fieldLoginTime:    strconv.FormatInt(r.LoginTime.UnixMilli(), 10),
		fieldLastActivity: strconv.FormatInt(r.LastActivity.UnixMilli(), 10),
		fieldIPAddress:    r.IPAddress,
		fieldUserAgent:    r.UserAgent,
	}
}

// RecordFromHash deserializes an HGETALL result. It reports ok=false for an
// empty or corrupt hash (missing user_id, unparsable timestamps); callers
// treat that the same as a record that already expired.
func RecordFromHash(fields map[string]string) (PresenceRecord, bool) {
	if fields[fieldUserID] == "" {
		return PresenceRecord{}, false
	}

	loginMs, err := strconv.ParseInt(fields[fieldLoginTime], 10, 64)
	if err != nil {
		return PresenceRecord{}, false
	}
	activityMs, err := strconv.ParseInt(fields[fieldLastActivity], 10, 64)
	if err != nil {
		return PresenceRecord{}, false
	}

	return PresenceRecord{
		UserID:       fields[fieldUserID],
		Email:        fields[fieldEmail],
		LoginTime:    time.UnixMilli(loginMs).UTC(),
		LastActivity: time.UnixMilli(activityMs).UTC(),
		IPAddress:    fields[fieldIPAddress],
		UserAgent:    fields[fieldUserAgent],
	}, true
}

// LoginRequest is the body of POST /presence/login.
type LoginRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type StatusResponse struct {
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

type OnlineUsersResponse struct {
	Count    int              `json:"count"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Users    []PresenceRecord `json:"users"`
}

type CleanupResponse struct {
	Evicted int `json:"evicted"`
}
