package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/chat-app/backend/internal/domain"
	"github.com/iamasit07/chat-app/backend/internal/service/chat"
	"github.com/iamasit07/chat-app/backend/internal/transport/http/middleware"
)

type ChatService interface {
	Send(ctx context.Context, senderID, recipientID int64, in chat.SendInput) (*domain.Message, error)
	History(ctx context.Context, me, peer int64) ([]domain.Message, error)
	Contacts(ctx context.Context, me int64) ([]domain.UserResponse, error)
}

type MessageHandler struct {
	Chat ChatService
}

func peerParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid user id")
		return 0, false
	}
	return id, true
}

func (h *MessageHandler) GetUsersForSidebar(c *gin.Context) {
	me, _ := middleware.UserID(c)
	users, err := h.Chat.Contacts(c.Request.Context(), me)
	if err != nil {
		writeError(c, "sidebar users", err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *MessageHandler) GetMessages(c *gin.Context) {
	me, _ := middleware.UserID(c)
	peer, ok := peerParam(c)
	if !ok {
		return
	}

	messages, err := h.Chat.History(c.Request.Context(), me, peer)
	if err != nil {
		writeError(c, "get messages", err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	me, _ := middleware.UserID(c)
	peer, ok := peerParam(c)
	if !ok {
		return
	}

	var req struct {
		Text     string `json:"text"`
		Image    string `json:"image"`
		ClientID string `json:"clientId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	msg, err := h.Chat.Send(c.Request.Context(), me, peer, chat.SendInput{
		Text:     req.Text,
		Image:    req.Image,
		ClientID: req.ClientID,
	})
	if err != nil {
		writeError(c, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
