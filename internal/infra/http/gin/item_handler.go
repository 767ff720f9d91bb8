package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"campusfind/internal/app/dto"
	itemhandlers "campusfind/internal/app/handlers/items"
	domainitems "campusfind/internal/domain/items"
)

type ItemHTTP interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Resolve(c *gin.Context)
}

type ItemHandler struct {
	Post    *itemhandlers.PostItemHandler
	GetOne  *itemhandlers.GetItemHandler
	ListAll *itemhandlers.ListItemsHandler
	Resolv  *itemhandlers.ResolveItemHandler
	Logger  *slog.Logger
}

type createItemRequest struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	ImageURL    string `json:"image_url"`
}

func (h ItemHandler) Create(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	result, err := h.Post.Handle(c.Request.Context(), itemhandlers.PostItemCommand{
		Owner:       currentViewer(c),
		Name:        req.Name,
		Status:      domainitems.Status(req.Status),
		Category:    req.Category,
		Description: req.Description,
		Location:    req.Location,
		Date:        req.Date,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapItem(result.Item))
}

func (h ItemHandler) Get(c *gin.Context) {
	result, err := h.GetOne.Handle(c.Request.Context(), itemhandlers.GetItemQuery{
		ItemID: c.Param("id"),
		Viewer: currentViewer(c),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.ItemView{
		Item:   dto.MapItem(result.Item),
		Access: dto.MapAccess(result.Decision),
	})
}

func (h ItemHandler) List(c *gin.Context) {
	result, err := h.ListAll.Handle(c.Request.Context(), itemhandlers.ListItemsQuery{
		Filter: domainitems.Filter{
			Status:   domainitems.Status(c.Query("status")),
			Category: c.Query("category"),
			Location: c.Query("location"),
			Query:    c.Query("q"),
			OwnerID:  c.Query("owner_id"),
		},
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapItems(result.Items))
}

func (h ItemHandler) Resolve(c *gin.Context) {
	result, err := h.Resolv.Handle(c.Request.Context(), itemhandlers.ResolveItemCommand{
		ItemID: c.Param("id"),
		Viewer: currentViewer(c),
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapItem(result.Item))
}

var _ ItemHTTP = ItemHandler{}
