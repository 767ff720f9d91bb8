package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"campusfind/internal/app/dto"
	chathandlers "campusfind/internal/app/handlers/chat"
)

type ChatHTTP interface {
	Send(c *gin.Context)
	History(c *gin.Context)
}

type ChatHandler struct {
	Sender *chathandlers.SendMessageHandler
	Lister *chathandlers.ListMessagesHandler
	Logger *slog.Logger
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h ChatHandler) Send(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := h.Sender.Handle(c.Request.Context(), chathandlers.SendMessageCommand{
		ItemID: c.Param("id"),
		Sender: currentViewer(c),
		Text:   req.Content,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.SendMessageResponse{
		Message: dto.MapMessage(result.Message),
		Bound:   result.Bound,
	})
}

func (h ChatHandler) History(c *gin.Context) {
	result, err := h.Lister.Handle(c.Request.Context(), chathandlers.ListMessagesQuery{
		ItemID: c.Param("id"),
		Viewer: currentViewer(c),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": dto.MapMessages(result.Messages).Messages,
		"access":   dto.MapAccess(result.Decision),
	})
}

var _ ChatHTTP = ChatHandler{}
