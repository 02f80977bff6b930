package middleware

import (
	"github.com/gin-gonic/gin"

	"learnhub/presence-service/services"
	"learnhub/presence-service/utils"
)

// ActivityRefresh bumps the caller's last-activity timestamp on every
// authenticated request, resetting their staleness clock. A failed refresh
// is logged but does not fail the request: presence is soft state and the
// next request refreshes it again.
func ActivityRefresh(presence *services.PresenceService, logger *utils.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetString("userID"); userID != "" {
			if err := presence.UpdateActivity(c.Request.Context(), userID); err != nil {
				logger.Warn("Failed to refresh activity", "user_id", userID, "error", err)
			}
		}
		c.Next()
	}
}
