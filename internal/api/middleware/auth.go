package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/supportchat/internal/auth"
	"github.com/immxrtalbeast/supportchat/internal/domain"
)

const principalKey = "principal"

// Authenticate resolves a bearer token into a staff principal. Requests
// without a token pass through anonymously; a bad token is rejected.
// Browsers cannot set headers on websocket upgrades, so the token query
// parameter is accepted as well.
func Authenticate(authn auth.Authenticator, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		principal, err := authn.Verify(token)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "token has expired"
			}
			log.Debug("rejected bearer token", slog.String("path", c.Request.URL.Path), slog.String("reason", err.Error()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": domain.CodeUnauthorized, "error": msg})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// RequireStaff rejects requests that did not authenticate as staff.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p, ok := Principal(c); !ok || !p.IsStaff() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": domain.CodeUnauthorized, "error": "staff access required"})
			return
		}
		c.Next()
	}
}

// Principal returns the authenticated principal stored by Authenticate.
func Principal(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	p, ok := v.(domain.Principal)
	return p, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(c.Query("token"))
}
