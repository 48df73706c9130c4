package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/supportchat/internal/auth"
	"github.com/immxrtalbeast/supportchat/internal/auth/mocks"
	"github.com/immxrtalbeast/supportchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func newEngine(authn auth.Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(authn, slog.New(slog.NewTextHandler(io.Discard, nil))))
	r.GET("/whoami", func(c *gin.Context) {
		p, ok := Principal(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok, "id": p.ID, "role": p.Role})
	})
	r.GET("/staff", RequireStaff(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestAuthenticate(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := mocks.NewMockAuthenticator(ctrl)
	r := newEngine(authn)

	authn.EXPECT().Verify("good").Return(domain.StaffPrincipal("op-1", "Olga"), nil).Times(2)
	authn.EXPECT().Verify("bad").Return(domain.Principal{}, auth.ErrInvalidToken)

	tests := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{name: "anonymous", path: "/whoami", status: http.StatusOK, body: `"authenticated":false`},
		{name: "bearer header", path: "/whoami", header: "Bearer good", status: http.StatusOK, body: `"id":"op-1"`},
		{name: "query token", path: "/whoami?token=good", status: http.StatusOK, body: `"role":"staff"`},
		{name: "invalid token", path: "/whoami", header: "Bearer bad", status: http.StatusUnauthorized, body: "invalid token"},
		{name: "staff route anonymous", path: "/staff", status: http.StatusForbidden, body: "staff access required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestRequireStaffAllowsStaff(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := mocks.NewMockAuthenticator(ctrl)
	authn.EXPECT().Verify("good").Return(domain.StaffPrincipal("op-1", "Olga"), nil)

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	newEngine(authn).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestExpiredTokenMessage(t *testing.T) {
	ctrl := gomock.NewController(t)
	authn := mocks.NewMockAuthenticator(ctrl)
	authn.EXPECT().Verify("old").Return(domain.Principal{}, auth.ErrExpiredToken)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer old")
	rec := httptest.NewRecorder()
	newEngine(authn).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token has expired")
}
