package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"campusfind/internal/app/access"
	"campusfind/internal/app/services/auth"
	domainauth "campusfind/internal/domain/auth"
)

const principalContextKey = "campusfind.principal"

type principal struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthMiddleware resolves the bearer token into a principal when present.
// A missing or invalid token is not an error; handlers that need identity
// check for the principal themselves, and the access controller treats the
// anonymous viewer as a first-class state.
type AuthMiddleware struct {
	Service *auth.Service
	Logger  *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Service == nil {
		c.Next()
		return
	}
	resolved, err := m.Service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		if !errors.Is(err, domainauth.ErrSessionNotFound) && m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	user := resolved.User
	setPrincipal(c, principal{
		ID:        string(user.ID),
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		Token:     token,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	})
	c.Next()
}

func setPrincipal(c *gin.Context, p principal) {
	c.Set(principalContextKey, p)
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	val, exists := c.Get(principalContextKey)
	if !exists {
		return principal{}, false
	}
	p, ok := val.(principal)
	return p, ok
}

func requireAuth(c *gin.Context) (principal, bool) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return principal{}, false
	}
	return p, true
}

// currentViewer maps the request principal onto the access controller's
// viewer model. Anonymous requests yield the zero viewer.
func currentViewer(c *gin.Context) access.Viewer {
	p, ok := currentPrincipal(c)
	if !ok {
		return access.Viewer{}
	}
	return access.Viewer{ID: p.ID, Name: p.Name, AvatarURL: p.AvatarURL}
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
