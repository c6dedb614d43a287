package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/service"
)

// ChatHandlers serves the gated agent endpoint
type ChatHandlers struct {
	chatService *service.ChatService
}

// NewChatHandlers creates new chat handlers
func NewChatHandlers(chatService *service.ChatService) *ChatHandlers {
	return &ChatHandlers{chatService: chatService}
}

type chatRequest struct {
	Messages []core.ChatMessage `json:"messages"`
}

// ChatResponse carries the agent's answer
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Chat forwards the conversation of a granted session to the agent
func (h *ChatHandlers) Chat(c *gin.Context) {
	session, ok := sessionFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session not found in context"})
		return
	}

	var req chatRequest
	_ = c.ShouldBindJSON(&req)

	reply, err := h.chatService.Reply(c.Request.Context(), session, req.Messages)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNoUserMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No user message provided"})
		case errors.Is(err, core.ErrMissingConfig):
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing OPENAI_API_KEY"})
		default:
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent unavailable"})
		}
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Reply: reply})
}
