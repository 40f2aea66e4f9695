package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/hsuzuki/taskbox-api/api/swagger"
	"github.com/hsuzuki/taskbox-api/internal/handler"
	"github.com/hsuzuki/taskbox-api/internal/middleware"
	"github.com/hsuzuki/taskbox-api/internal/repository"
	"github.com/hsuzuki/taskbox-api/internal/service"
	"github.com/hsuzuki/taskbox-api/pkg/cache"
	"github.com/hsuzuki/taskbox-api/pkg/config"
	"github.com/hsuzuki/taskbox-api/pkg/database"
	"github.com/hsuzuki/taskbox-api/pkg/logger"
	corsmiddleware "github.com/hsuzuki/taskbox-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hsuzuki/taskbox-api/pkg/middleware/requestid"
)

// @title TaskBox API
// @version 1.0.0
// @description Multi-tenant task tracking API
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := database.Migrate(ctx, db); err != nil {
			cancel()
			logr.Sugar().Fatalw("failed to apply migrations", "error", err)
		}
		cancel()
	}

	// Signing key material is loaded once and injected; no package-level
	// state. The verifier only receives the public half.
	signingKey, err := service.LoadSigningKey(cfg.JWT.PrivateKeyPath)
	if err != nil {
		logr.Sugar().Fatalw("failed to load signing key", "error", err)
	}
	verifyKey, err := service.LoadVerifyKey(cfg.JWT.PublicKeyPath)
	if err != nil {
		logr.Sugar().Fatalw("failed to load verify key", "error", err)
	}

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
		defer cacheRepo.Close() //nolint:errcheck
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	todoRepo := repository.NewTodoRepository(db)

	authSvc := service.NewAuthService(userRepo, tokenRepo, signingKey, validate, logr, service.AuthConfig{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})
	verifier := service.NewTokenVerifier(verifyKey)
	todoSvc := service.NewTodoService(todoRepo, cacheSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	todoHandler := handler.NewTodoHandler(todoSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", middleware.JWT(verifier), authHandler.Me)

	todos := api.Group("/todos", middleware.JWT(verifier))
	todos.GET("", todoHandler.List)
	todos.POST("", todoHandler.Create)
	todos.GET("/:id", todoHandler.Get)
	todos.PUT("/:id", todoHandler.Update)
	todos.PATCH("/:id/status", todoHandler.UpdateStatus)
	todos.DELETE("/:id", todoHandler.Delete)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
