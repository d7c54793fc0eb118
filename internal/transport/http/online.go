package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Presence reports who is connected right now.
type Presence interface {
	OnlineUsers() []int64
}

type OnlineHandler struct {
	Presence Presence
}

// GetOnlineUsers returns the ids of every user with a live connection.
func (h *OnlineHandler) GetOnlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"onlineUsers": h.Presence.OnlineUsers()})
}
