package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_UsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(false)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/recipe/recipes/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/api/recipe/recipes/1", "/api/recipe/recipes/2", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/recipe/recipes/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestDomainCounters(t *testing.T) {
	m := New(false)

	m.ResourceCreated("recipe")
	m.ResourceCreated("recipe")
	m.ResourceCreated("tag")
	m.AuthAttempt("token", true)
	m.AuthAttempt("token", false)
	m.ImageStored("local")
	m.RateLimited("/api/users/token")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.resourcesCreated.WithLabelValues("recipe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resourcesCreated.WithLabelValues("tag")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authAttempts.WithLabelValues("token", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.imagesStored.WithLabelValues("local")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("/api/users/token")))
}

func TestHandler_Exposition(t *testing.T) {
	m := New(true)
	m.ResourceCreated("ingredient")

	resp := httptest.NewRecorder()
	m.Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.True(t, strings.Contains(body, `recipe_api_resources_created_total{kind="ingredient"} 1`))
	assert.Contains(t, body, "go_goroutines")
}

func TestNopSatisfiesObserver(t *testing.T) {
	var o Observer = Nop{}
	o.ResourceCreated("tag")
	o.AuthAttempt("token", false)
}
