package ginserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"campusfind/internal/infra/storage/s3"
)

const maxPhotoSize = 10 << 20 // 10 MiB

type PhotoHTTP interface {
	Upload(c *gin.Context)
}

// PhotoHandler accepts a multipart item photo and stores it in the bucket,
// returning the public URL the listing form puts on the item.
type PhotoHandler struct {
	Uploader s3.Uploader
	Logger   *slog.Logger
}

func (h PhotoHandler) Upload(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	defer file.Close()
	if header.Size > maxPhotoSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo exceeds 10MB"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only image uploads are accepted"})
		return
	}

	key := fmt.Sprintf("items/%s/%s%s", p.ID, uuid.NewString(), path.Ext(header.Filename))
	url, err := h.Uploader.Upload(c.Request.Context(), key, file, contentType)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("photo upload failed", "user_id", p.ID, "error", err)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

var _ PhotoHTTP = PhotoHandler{}
