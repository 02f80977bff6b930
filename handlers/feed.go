package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"learnhub/presence-service/models"
	"learnhub/presence-service/services"
	"learnhub/presence-service/utils"
)

const feedPageSize = 100

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Auth happens in middleware; the frontends run on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// FeedHandler streams roster snapshots over a websocket so dashboards can
// show who is online without polling.
type FeedHandler struct {
	service  *services.PresenceService
	logger   *utils.Logger
	interval time.Duration
}

func NewFeedHandler(service *services.PresenceService, logger *utils.Logger, interval time.Duration) *FeedHandler {
	return &FeedHandler{
		service:  service,
		logger:   logger,
		interval: interval,
	}
}

// Feed handles GET /api/v1/presence/feed
func (h *FeedHandler) Feed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close/ping handling keeps working.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	ctx := c.Request.Context()

	if err := h.pushSnapshot(c, conn); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.pushSnapshot(c, conn); err != nil {
				return
			}
		}
	}
}

func (h *FeedHandler) pushSnapshot(c *gin.Context, conn *websocket.Conn) error {
	users, err := h.service.GetOnlineUsers(c.Request.Context(), 1, feedPageSize)
	if err != nil {
		h.logger.Error("Failed to fetch roster snapshot", "error", err)
		return err
	}

	snapshot := models.OnlineUsersResponse{
		Count:    len(users),
		Page:     1,
		PageSize: feedPageSize,
		Users:    users,
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(snapshot)
}
