package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrskr/recipe-app-api/pkg/recipeapi/config"
)

func TestNew_Level(t *testing.T) {
	logger := New(config.LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger = New(config.LogConfig{Level: "nonsense"})
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"ok", http.StatusOK, "info"},
		{"client error", http.StatusNotFound, "warning"},
		{"server error", http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewWithOutput(config.LogConfig{Level: "info", Format: "json"}, &buf)

			r := gin.New()
			r.Use(Middleware(logger))
			r.GET("/ping", func(c *gin.Context) {
				c.Set("user_id", uint(7))
				c.Status(tt.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/ping?x=1", nil)
			r.ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, "/ping", line["path"])
			assert.Equal(t, "x=1", line["query"])
			assert.EqualValues(t, tt.status, line["status"])
			assert.EqualValues(t, 7, line["user_id"])
		})
	}
}
