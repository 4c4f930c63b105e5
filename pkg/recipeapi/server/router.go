// Package server assembles the HTTP router from the individual handlers.
package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/admin"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/httperr"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/ingredients"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/logging"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/metrics"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/ratelimit"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/recipes"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/storage"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/tags"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/users"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "github.com/skrskr/recipe-app-api/api/swagger"
)

// Deps are the collaborators the router is built from. Metrics and Limiter
// are optional.
type Deps struct {
	DB       *gorm.DB
	Storage  storage.Storage
	JWT      *auth.JWTManager
	Logger   *logrus.Logger
	Metrics  *metrics.Metrics
	Limiter  ratelimit.Limiter
	MediaURL string
}

// NewRouter builds the gin engine serving the API
func NewRouter(deps Deps) *gin.Engine {
	httperr.Setup()

	logger := deps.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(logging.Middleware(logger), gin.Recovery())

	var observer metrics.Observer = metrics.Nop{}
	if deps.Metrics != nil {
		observer = deps.Metrics
		r.Use(deps.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Uploaded images are served directly when they live on local disk
	if local, ok := deps.Storage.(*storage.LocalStorage); ok {
		mediaURL := strings.TrimSuffix(deps.MediaURL, "/")
		if mediaURL == "" {
			mediaURL = "/media"
		}
		r.Static(mediaURL, local.Root())
	}

	var credential []gin.HandlerFunc
	if deps.Limiter != nil {
		credential = append(credential, ratelimit.Middleware(deps.Limiter, observer, logger))
	}

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "recipe-api",
			})
		})

		// Account routes (registration and token exchange are public)
		usersHandler := users.NewHandler(deps.DB)
		usersHandler.SetObserver(observer)
		usersHandler.RegisterRoutes(api, credential...)

		// Recipe routes (token required)
		recipeAPI := api.Group("", auth.TokenMiddleware(deps.DB))

		tagsHandler := tags.NewHandler(deps.DB)
		tagsHandler.SetObserver(observer)
		tagsHandler.RegisterRoutes(recipeAPI, tags.Path)

		ingredientsHandler := ingredients.NewHandler(deps.DB)
		ingredientsHandler.SetObserver(observer)
		ingredientsHandler.RegisterRoutes(recipeAPI, ingredients.Path)

		recipesHandler := recipes.NewHandler(deps.DB, deps.Storage)
		recipesHandler.SetObserver(observer)
		recipesHandler.RegisterRoutes(recipeAPI)

		// Admin routes (separate JWT session, staff only)
		if deps.JWT != nil {
			adminHandler := admin.NewHandler(deps.DB, deps.Storage, deps.JWT)
			adminHandler.SetObserver(observer)
			adminHandler.RegisterRoutes(api, credential...)
		}
	}

	return r
}
