package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	iauth "github.com/taskhive/taskhive/internal/auth"
	"github.com/taskhive/taskhive/internal/models"
)

func newAuthTestRig(t *testing.T) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:   "middleware-secret",
		Issuer:   "taskhive",
		Audience: "taskhive-api",
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	resolver, err := iauth.NewResolver(db, jwtSvc, nil)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", Auth(resolver), func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		require.True(t, ok)
		c.String(http.StatusOK, identity.UID)
	})

	return r, jwtSvc
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	r, jwtSvc := newAuthTestRig(t)

	token, err := jwtSvc.GenerateSessionToken(&models.User{UID: "mw-uid", Email: "mw@example.com"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "mw-uid", w.Body.String())
}

func TestAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	r, jwtSvc := newAuthTestRig(t)

	token, err := jwtSvc.GenerateSessionToken(&models.User{UID: "mw-ws-uid", Email: "mw-ws@example.com"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "mw-ws-uid", w.Body.String())
}

func TestAuthMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	r, _ := newAuthTestRig(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "NO_TOKEN")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "INVALID_TOKEN")
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}
