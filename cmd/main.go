package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/redis/go-redis/v9"
	"github.com/sofrago/admin-gateway/internal/auth"
	"github.com/sofrago/admin-gateway/internal/browserctx"
	"github.com/sofrago/admin-gateway/internal/config"
	"github.com/sofrago/admin-gateway/internal/database"
	"github.com/sofrago/admin-gateway/internal/devauth"
	"github.com/sofrago/admin-gateway/internal/guard"
	"github.com/sofrago/admin-gateway/internal/session"
	"github.com/sofrago/admin-gateway/internal/store"
	"github.com/sofrago/admin-gateway/internal/token"
	"github.com/sofrago/admin-gateway/internal/upstream"
	"go.uber.org/zap"
	"moul.io/chizap"
)

func main() {
	// init logger
	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// token store backend
	var tokens store.TokenStore
	switch cfg.StoreConfig.Backend {
	case "postgres":
		db, err := database.Init(cfg.DbConfig)
		if err != nil {
			logger.Fatal("failed to initialize database", zap.Error(err))
		}
		defer db.Close()

		database.SetMigrationLogger(logger)
		if err := database.Migrate(ctx, db); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		tokens = store.NewPostgresStore(db, logger)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		defer client.Close()
		tokens = store.NewRedisStore(client, cfg.StoreConfig.SlotTTL)
	default:
		logger.Warn("using in-memory token store; sessions will not survive restarts")
		tokens = store.NewMemoryStore()
	}

	// authenticator: real backend, or the local dev provider
	var authenticator upstream.Authenticator
	if cfg.DevAuthConfig.Enabled {
		provider, err := devauth.NewProvider(cfg.DevAuthConfig, logger)
		if err != nil {
			logger.Fatal("failed to initialize dev auth provider", zap.Error(err))
		}
		logger.Warn("dev auth provider enabled; do not use in production")
		authenticator = provider
	} else {
		authenticator = upstream.NewClient(cfg.UpstreamConfig, logger)
	}

	evaluator := session.NewEvaluator(tokens, logger)
	authService := auth.NewAuthService(authenticator, tokens, evaluator, logger)
	authHandler := auth.NewAuthenticationHandler(authService, cfg.RoutesConfig, logger)

	base, err := url.Parse(cfg.UpstreamConfig.BaseURL)
	if err != nil {
		logger.Fatal("invalid upstream base URL", zap.Error(err))
	}
	proxy := upstream.NewProxy(base, tokens, cfg.RoutesConfig.LoginPath, logger)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(chizap.New(logger, &chizap.Opts{WithReferer: false, WithUserAgent: true}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.AppConfig.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(browserctx.Middleware(cfg.AppConfig.SecureCookies))

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(10, time.Minute))
		r.Mount("/auth", authHandler.Routes())
	})

	// Console API areas, each behind its own allow-list. Business logic
	// lives upstream; only the guard and bearer forwarding happen here.
	mount := func(pattern string, allow token.AllowList) {
		r.Group(func(r chi.Router) {
			r.Use(guard.Require(evaluator, allow, cfg.RoutesConfig.LoginPath, logger))
			r.Handle(pattern, proxy.Handler())
		})
	}
	mount("/api/admins/*", token.AllowList{token.RoleMasterAdmin})
	mount("/api/stores/*", token.AllowList{token.RoleAdmin})
	mount("/api/riders/*", token.AllowList{token.RoleAdmin})
	mount("/api/foods/*", token.AllowList{token.RoleAdmin})
	mount("/api/complaints/*", token.AllowList{token.RoleAdmin})
	mount("/api/topups/*", token.AllowList{token.RoleAdmin})
	mount("/api/profile", token.AllowList{})

	srv := &http.Server{
		Addr:         ":" + cfg.AppConfig.Port,
		Handler:      r,
		ReadTimeout:  cfg.AppConfig.ReadTimeout,
		WriteTimeout: cfg.AppConfig.WriteTimeout,
		IdleTimeout:  cfg.AppConfig.IdleTimeout,
	}

	go func() {
		logger.Info("gateway listening", zap.String("port", cfg.AppConfig.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
