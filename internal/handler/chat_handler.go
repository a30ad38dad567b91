package handler

import (
	"errors"
	"net/http"

	"projectcompanion/internal/chat"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatHandler struct {
	session *chat.Session
	logger  *zap.Logger
}

func NewChatHandler(session *chat.Session, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{session: session, logger: logger}
}

type chatRequest struct {
	Message string `json:"message"`
}

// SendMessage runs one chat turn. A send that arrives while another is in
// flight is rejected with 409; an unreachable assistant maps to 502.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("SendMessage: invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message required"})
		return
	}

	res, err := h.session.Send(c.Request.Context(), req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrRequestInFlight) {
			h.logger.Warn("SendMessage: rejected, request already in flight")
			c.JSON(http.StatusConflict, gin.H{"error": "a chat request is already in flight"})
			return
		}
		h.logger.Error("SendMessage: assistant unavailable", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant unavailable"})
		return
	}

	c.JSON(http.StatusOK, res)
}

// GetHistory returns the in-memory conversation history, oldest first.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"messages": h.session.History()})
}

// ClearHistory drops the conversation history.
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	h.session.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
