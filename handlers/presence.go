package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"learnhub/presence-service/models"
	"learnhub/presence-service/services"
	"learnhub/presence-service/utils"
)

type PresenceHandler struct {
	service *services.PresenceService
	logger  *utils.Logger
}

func NewPresenceHandler(service *services.PresenceService, logger *utils.Logger) *PresenceHandler {
	return &PresenceHandler{
		service: service,
		logger:  logger,
	}
}

// Login handles POST /api/v1/presence/login
func (h *PresenceHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	info := models.LoginInfo{
		UserID:    c.GetString("userID"),
		Email:     req.Email,
		LoginTime: time.Now(),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}

	if err := h.service.AddUser(c.Request.Context(), info); err != nil {
		h.logger.Error("Failed to mark user online", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to mark user online",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "online"})
}

// Logout handles POST /api/v1/presence/logout
func (h *PresenceHandler) Logout(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.service.RemoveUser(c.Request.Context(), userID); err != nil {
		h.logger.Error("Failed to mark user offline", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to mark user offline",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "offline"})
}

// Heartbeat handles POST /api/v1/presence/heartbeat
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID := c.GetString("userID")

	if err := h.service.UpdateActivity(c.Request.Context(), userID); err != nil {
		h.logger.Error("Failed to update activity", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to update activity",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "active"})
}

// Status handles GET /api/v1/presence/status/:user_id
func (h *PresenceHandler) Status(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id is required",
		})
		return
	}

	online, err := h.service.IsUserOnline(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to check user status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to check user status",
		})
		return
	}

	c.JSON(http.StatusOK, models.StatusResponse{
		UserID: userID,
		Online: online,
	})
}

// Online handles GET /api/v1/presence/online
func (h *PresenceHandler) Online(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "page must be a positive integer",
		})
		return
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "page_size must be between 1 and 100",
		})
		return
	}

	users, err := h.service.GetOnlineUsers(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("Failed to list online users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list online users",
		})
		return
	}

	c.JSON(http.StatusOK, models.OnlineUsersResponse{
		Count:    len(users),
		Page:     page,
		PageSize: pageSize,
		Users:    users,
	})
}

// Stats handles GET /api/v1/presence/stats
func (h *PresenceHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetOnlineStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to compute online stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to compute online stats",
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Count handles GET /api/v1/presence/count
func (h *PresenceHandler) Count(c *gin.Context) {
	count, err := h.service.GetActiveUsersCount(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to count online users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to count online users",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// Cleanup handles POST /api/v1/presence/cleanup
func (h *PresenceHandler) Cleanup(c *gin.Context) {
	evicted, err := h.service.CleanupInactiveUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to evict inactive users", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to evict inactive users",
		})
		return
	}

	c.JSON(http.StatusOK, models.CleanupResponse{Evicted: evicted})
}
