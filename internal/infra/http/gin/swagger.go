package ginserver

import (
	_ "embed"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
)

//go:embed swagger/openapi.json
var swaggerSpec []byte

//go:embed swagger/index.html
var swaggerHTML []byte

// registerSwaggerRoutes serves the embedded OpenAPI document and its viewer.
// Both /swagger and /swagger/index.html resolve to the same page.
func registerSwaggerRoutes(router gin.IRoutes) {
	page := strings.ReplaceAll(string(swaggerHTML), "{{SPEC_URL}}", "/swagger/doc.json")
	serveUI := func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	}
	router.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", swaggerSpec)
	})
	router.GET("/swagger", serveUI)
	router.GET("/swagger/index.html", serveUI)
}
