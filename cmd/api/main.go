//	@title			Media Offloader API
//	@version		1.0
//	@description	Offloads media attachments to S3-compatible object storage and rewrites their public URLs.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token issued by POST /auth/token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/offloader/service/internal/attachment"
	"github.com/offloader/service/internal/auth"
	"github.com/offloader/service/internal/config"
	"github.com/offloader/service/internal/db"
	"github.com/offloader/service/internal/logger"
	appMiddleware "github.com/offloader/service/internal/middleware"
	"github.com/offloader/service/internal/offload"
	"github.com/offloader/service/internal/rewrite"
	"github.com/offloader/service/internal/settings"
	"github.com/offloader/service/internal/storage"

	_ "github.com/offloader/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	logger.Setup(cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Log.Fatal().Err(err).Msg("database migration failed")
	}

	var lookup rewrite.Lookup
	if cfg.RedisURL != "" {
		rdb, err := db.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()
		lookup = rewrite.NewRedisLookup(rdb, time.Hour, 30*time.Second)
	}

	// Wire dependencies: repository → service → handler
	provider := settings.NewProvider(settings.NewPostgresStore(pool), settings.EnvDefaults())
	clients := storage.NewFactory(nil)
	provider.OnChange(clients.Invalidate)
	settingsHandler := settings.NewHandler(provider)

	attachmentRepo := attachment.NewRepository(pool)
	attachmentSvc := attachment.NewService(attachmentRepo)
	attachmentHandler := attachment.NewHandler(attachmentSvc)

	uploader := offload.NewUploader(attachmentRepo, provider, clients, cfg.UploadRoot)
	syncer := offload.NewSyncer(attachmentRepo, uploader, cfg.UploadRoot)
	offloadHandler := offload.NewHandler(attachmentSvc, uploader, syncer, cfg.SyncBatch)

	resolver := offload.NewResolver(provider, cfg.UploadBaseURL)
	rewriteHandler := rewrite.NewHandler(rewrite.NewRewriter(attachmentRepo, resolver, lookup))

	authHandler := auth.NewHandler(auth.NewService(cfg))

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/token", authHandler.Token)

		// Host integration, expected on an internal network.
		r.Route("/attachments", func(r chi.Router) {
			r.Post("/", offloadHandler.Register)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", attachmentHandler.Get)
				r.Delete("/", attachmentHandler.Delete)
				r.Post("/offload", offloadHandler.Offload)
				r.Get("/url", rewriteHandler.AttachmentURL)
				r.Post("/image-src", rewriteHandler.ImageSrc)
				r.Post("/srcset", rewriteHandler.SrcSet)
				r.Get("/downsize", rewriteHandler.Downsize)
			})
		})
		r.Route("/rewrite", func(r chi.Router) {
			r.Post("/asset-json", rewriteHandler.AssetJSON)
			r.Post("/content", rewriteHandler.Content)
		})

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAdmin(cfg.JWTSecret))
			r.Get("/settings", settingsHandler.Get)
			r.Put("/settings", settingsHandler.Update)
			r.Post("/sync", offloadHandler.Sync)
			r.Post("/connection-test", offloadHandler.ConnectionTest)
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // sync runs inside the request
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Log.Info().Str("port", cfg.Port).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	logger.Log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("forced shutdown")
	}

	logger.Log.Info().Msg("server stopped")
}
