package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/accounts"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/auth"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/config"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/database"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/logging"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/metrics"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/models"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/ratelimit"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/server"
	"github.com/skrskr/recipe-app-api/pkg/recipeapi/storage"
	"github.com/urfave/cli/v3"
)

// @title Recipe API
// @version 1.0
// @description Recipe API with accounts, tags, ingredients, recipes and image upload.

// @contact.name Recipe API Support
// @contact.url https://github.com/skrskr/recipe-app-api

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /api

// @securityDefinitions.apikey TokenAuth
// @in header
// @name Authorization
// @description API token from /users/token. Format: "Token {key}"

// @securityDefinitions.apikey AdminAuth
// @in header
// @name Authorization
// @description Admin session JWT from /admin/login. Format: "Bearer {jwt}"

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is fine; real deployments use the environment directly
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cli.Command {
	return &cli.Command{
		Name:  "recipe-server",
		Usage: "Recipe API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (default ./config.yaml when present)",
			},
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			createSuperuserCmd(),
		},
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run database migrations and start the HTTP server",
		Action: serve,
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the database schema and exit",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			log.Info("Database migrations completed")
			return nil
		},
	}
}

func createSuperuserCmd() *cli.Command {
	return &cli.Command{
		Name:  "createsuperuser",
		Usage: "Create a staff superuser account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Usage: "Login email", Required: true},
			&cli.StringFlag{Name: "password", Usage: "Login password", Required: true},
			&cli.StringFlag{Name: "name", Usage: "Display name", Value: "Administrator"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, log, err := bootstrap(cmd)
			if err != nil {
				return err
			}

			store := accounts.NewStore(database.GetDB())
			user, err := store.CreateSuperuser(ctx, cmd.String("email"), cmd.String("password"),
				accounts.WithName(cmd.String("name")))
			if err != nil {
				return fmt.Errorf("create superuser: %w", err)
			}

			log.WithField("email", user.Email).Info("Created superuser")
			return nil
		},
	}
}

// bootstrap loads configuration, connects to the database and migrates it.
func bootstrap(cmd *cli.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}

	log := logging.New(cfg.Log)

	if err := database.Connect(cfg.Database.DSN, log); err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := models.AutoMigrate(database.GetDB()); err != nil {
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}

	return cfg, log, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	log.Info("Database migrations completed")

	if cfg.Admin.Email != "" {
		created, err := accounts.NewStore(database.GetDB()).EnsureSuperuser(ctx, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			return fmt.Errorf("ensure superuser: %w", err)
		}
		if created {
			log.WithField("email", cfg.Admin.Email).Info("Created default superuser")
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("configure storage: %w", err)
	}
	log.WithField("backend", store.Backend()).Info("Image storage ready")

	gin.SetMode(cfg.Server.Mode)

	router := server.NewRouter(server.Deps{
		DB:       database.GetDB(),
		Storage:  store,
		JWT:      auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AdminTokenTTL),
		Logger:   log,
		Metrics:  metrics.New(true),
		Limiter:  newLimiter(ctx, cfg, log),
		MediaURL: cfg.Storage.MediaURL,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("Starting recipe API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newLimiter returns the shared Redis limiter when Redis is configured and
// reachable, the in-process limiter otherwise, and nil when rate limiting is
// disabled.
func newLimiter(ctx context.Context, cfg *config.Config, log *logrus.Logger) ratelimit.Limiter {
	rl := cfg.RateLimit
	if rl.RequestsPerSecond == 0 {
		return nil
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("Redis unavailable, using in-process rate limiter")
			_ = client.Close()
		} else {
			return ratelimit.NewRedisLimiter(client, "recipe:ratelimit:", rl.RequestsPerSecond, rl.Burst)
		}
	}

	return ratelimit.NewMemoryLimiter(rl.RequestsPerSecond, rl.Burst)
}
