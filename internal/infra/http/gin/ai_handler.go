package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	domainitems "campusfind/internal/domain/items"
	"campusfind/internal/infra/ai"
)

type AIHTTP interface {
	ItemDetails(c *gin.Context)
}

// AIHandler pre-fills listing details from a photo. Optional collaborator:
// when no suggester is configured the route answers 503.
type AIHandler struct {
	Suggester *ai.Suggester
	Logger    *slog.Logger
}

type itemDetailsRequest struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	PhotoBase64 string `json:"photo_base64"`
}

func (h AIHandler) ItemDetails(c *gin.Context) {
	if h.Suggester == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ai suggestions not configured"})
		return
	}
	if _, ok := requireAuth(c); !ok {
		return
	}
	var req itemDetailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	suggestion, err := h.Suggester.Suggest(c.Request.Context(), ai.SuggestParams{
		Name:        req.Name,
		Status:      domainitems.Status(req.Status),
		PhotoBase64: req.PhotoBase64,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("ai suggestion failed", "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate item details"})
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

var _ AIHTTP = AIHandler{}
