package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/jimdaga/briefdesk/internal/auth"
	"github.com/jimdaga/briefdesk/internal/briefings"
	"github.com/jimdaga/briefdesk/internal/config"
	"github.com/jimdaga/briefdesk/internal/database"
	"github.com/jimdaga/briefdesk/internal/health"
	"github.com/jimdaga/briefdesk/internal/labels"
	"github.com/jimdaga/briefdesk/internal/store"
	"github.com/jimdaga/briefdesk/internal/streams"
	"github.com/jimdaga/briefdesk/internal/worker"
)

const (
	// Workspaces idle longer than this are dropped with any unsaved edits.
	workspaceIdle  = 2 * time.Hour
	sweepInterval  = 10 * time.Minute
	sessionMaxAge  = 86400 * 7
	shutdownPeriod = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server, with the worker embedded unless EMBEDDED_WORKER=false",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := setup()
			if err != nil {
				return err
			}
			defer database.Close(db)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cfg, db)
		},
	}
}

func serve(cfg *config.Config, db *gorm.DB) error {
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	if !cfg.IsProduction() {
		if err := database.SeedDevData(context.Background(), db); err != nil {
			slog.Warn("Failed to seed development data", "error", err)
		}
	}

	auth.InitProviders(cfg)

	redisOpt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()

	st := store.New(db)
	gen := newGenerator(cfg)
	set := labels.MustLookup(cfg.Locale)

	pub := streams.NewPublisherFromClient(rdb)
	deps := &briefings.Deps{
		Workspaces: briefings.NewWorkspaces(st, gen, set, cfg.GenerateRatePerMinute),
		Store:      st,
		Labels:     set,
		Events:     pub,
	}

	if err := worker.InitClient(cfg.RedisURL); err != nil {
		slog.Warn("Background generation disabled", "error", err)
	} else {
		defer worker.CloseClient()
		deps.Enqueue = worker.EnqueueGenerateBriefing
	}

	if cfg.EmbeddedWorker {
		stopWorker, err := worker.Start(cfg, worker.Deps{Generator: gen, Store: st, Events: pub})
		if err != nil {
			return err
		}
		defer stopWorker()

		stopConsumer, err := streams.StartEventConsumer(cfg.RedisURL, db)
		if err != nil {
			slog.Warn("Event consumer not started", "error", err)
		} else {
			defer stopConsumer()
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.SetHTMLTemplate(briefings.MustTemplates())

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("briefdesk_session", sessionStore))

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/ready", gin.WrapF(health.ReadyHandler(map[string]health.Check{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/login", auth.HandleLogin)
	r.GET("/auth/google/callback", auth.HandleCallback(db))
	r.GET("/logout", auth.HandleLogout)
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/briefings") })

	briefings.RegisterRoutes(r.Group("/", auth.RequireAuth()), deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepWorkspaces(ctx, deps.Workspaces)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "locale", set.Locale)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownPeriod)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepWorkspaces(ctx context.Context, ws *briefings.Workspaces) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := ws.Sweep(workspaceIdle); n > 0 {
				slog.Info("Dropped idle workspaces", "count", n, "remaining", ws.Len())
			}
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
