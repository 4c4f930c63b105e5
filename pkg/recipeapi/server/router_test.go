package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/metrics"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/ratelimit"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newDeps(t *testing.T) Deps {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return Deps{
		DB:       db,
		Storage:  storage.NewLocalStorage(t.TempDir(), "/media/"),
		JWT:      auth.NewJWTManager("test-secret", time.Hour),
		Logger:   logger,
		MediaURL: "/media/",
	}
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestNewRouter_Health(t *testing.T) {
	r := NewRouter(newDeps(t))

	for _, path := range []string{"/health", "/api/health"} {
		resp := serve(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, resp.Code, path)
		assert.Contains(t, resp.Body.String(), `"status":"ok"`)
	}
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	r := NewRouter(newDeps(t))

	resp := serve(r, http.MethodPost, "/api/users/me", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}

func TestNewRouter_AdminRoutesNeedJWT(t *testing.T) {
	deps := newDeps(t)
	r := NewRouter(deps)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/admin/stats", "").Code)

	deps.JWT = nil
	r = NewRouter(deps)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/admin/stats", "").Code)
}

func TestNewRouter_Metrics(t *testing.T) {
	deps := newDeps(t)
	deps.Metrics = metrics.New(false)
	r := NewRouter(deps)

	serve(r, http.MethodGet, "/api/health", "")
	serve(r, http.MethodPost, "/api/users/create", `{"email":"a@example.com","password":"secret","name":"A"}`)

	resp := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, `recipe_api_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
	assert.Contains(t, body, `recipe_api_resources_created_total{kind="user"} 1`)
}

func TestNewRouter_RateLimitsCredentials(t *testing.T) {
	deps := newDeps(t)
	deps.Limiter = ratelimit.NewMemoryLimiter(1, 1)
	r := NewRouter(deps)

	first := serve(r, http.MethodPost, "/api/users/token", `{"email":"a@example.com","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, first.Code)

	second := serve(r, http.MethodPost, "/api/users/token", `{"email":"a@example.com","password":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Authenticated routes are not throttled by the credential limiter
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/recipe/recipes", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/recipe/recipes", "").Code)
}

func TestNewRouter_ServesLocalMedia(t *testing.T) {
	deps := newDeps(t)
	local := deps.Storage.(*storage.LocalStorage)
	r := NewRouter(deps)

	key := "uploads/recipe/abc.png"
	require.NoError(t, os.MkdirAll(filepath.Join(local.Root(), "uploads/recipe"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(local.Root(), key), []byte("png-bytes"), 0o644))

	req := httptest.NewRequest(http.MethodGet, local.URL(key), nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, bytes.Equal([]byte("png-bytes"), resp.Body.Bytes()))
}

func TestNewRouter_Swagger(t *testing.T) {
	r := NewRouter(newDeps(t))

	resp := serve(r, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "/recipe/recipes/{id}/upload-image")
}
