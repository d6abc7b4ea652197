package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-jadwal-mapel/api/swagger"
	"github.com/noah-isme/sma-jadwal-mapel/internal/catalog"
	"github.com/noah-isme/sma-jadwal-mapel/internal/handler"
	"github.com/noah-isme/sma-jadwal-mapel/internal/middleware"
	"github.com/noah-isme/sma-jadwal-mapel/internal/models"
	"github.com/noah-isme/sma-jadwal-mapel/internal/occupancy"
	"github.com/noah-isme/sma-jadwal-mapel/internal/repository"
	"github.com/noah-isme/sma-jadwal-mapel/internal/service"
	"github.com/noah-isme/sma-jadwal-mapel/internal/upstream"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/cache"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/config"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/database"
	"github.com/noah-isme/sma-jadwal-mapel/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-jadwal-mapel/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-jadwal-mapel/pkg/middleware/requestid"
)

// @title SMA Jadwal Mapel BFF
// @version 1.0.0
// @description Server-side form sessions for authoring class schedules against the school backend
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	checks := map[string]handler.ReadinessCheck{}

	var redisClient *redis.Client
	if cfg.Catalog.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("catalog cache disabled, redis unavailable", zap.Error(err))
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, redisClient != nil)
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	var db *sqlx.DB
	if cfg.Audit.Enabled {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Warn("submission audit disabled, postgres unavailable", zap.Error(err))
		} else {
			defer db.Close() //nolint:errcheck
			checks["postgres"] = db.PingContext
		}
	}
	auditCfg := service.AuditServiceConfig{
		Workers:      cfg.Audit.Workers,
		MaxRetries:   cfg.Audit.MaxRetries,
		RetryDelay:   cfg.Audit.RetryInterval,
		DrainTimeout: cfg.Audit.DrainTimeout,
	}
	auditSvc := service.NewAuditService(nil, auditCfg, logr)
	if db != nil {
		auditSvc = service.NewAuditService(repository.NewSubmissionRepository(db), auditCfg, logr)
	}
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	backend := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, nil, metricsSvc, logr)
	loader := catalog.NewLoader(backend, cacheSvc, cfg.Catalog.CacheTTL, logr)
	builder := occupancy.NewBuilder(backend, cfg.Upstream.MaxParallel, logr)
	sessions := repository.NewSessionRepository()

	formSvc := service.NewFormService(loader, builder, backend, sessions, auditSvc, metricsSvc, validator.New(), logr, service.FormServiceConfig{
		SessionTTL: cfg.Forms.SessionTTL,
		ErrorTTL:   cfg.Forms.ErrorTTL,
	})
	go formSvc.RunSweeper(ctx, cfg.Forms.SweepInterval)

	authSvc := service.NewAuthService(cfg.JWT.Secret, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc), middleware.RequireFormRoles())

	dropdownHandler := handler.NewDropdownHandler(formSvc)
	api.GET("/dropdown/kelas", dropdownHandler.Classes)

	formHandler := handler.NewFormHandler(formSvc)
	forms := api.Group("/jadwal-forms")
	forms.POST("", formHandler.Open)
	forms.GET("/:id", formHandler.Get)
	forms.DELETE("/:id", formHandler.Discard)
	forms.PUT("/:id/class", formHandler.SelectClass)
	forms.POST("/:id/days/:dayId/rows", formHandler.AddRow)
	forms.DELETE("/:id/days/:dayId/rows/:index", formHandler.RemoveRow)
	forms.PATCH("/:id/days/:dayId/rows/:index", formHandler.SetField)
	forms.GET("/:id/days/:dayId/rows/:index/options", formHandler.RowOptions)
	forms.GET("/:id/preview", formHandler.Preview)
	forms.POST("/:id/submit", formHandler.Submit)

	auditHandler := handler.NewSubmissionAuditHandler(auditSvc)
	api.GET("/jadwal-submissions", middleware.RBAC(models.RoleSuperAdmin, models.RoleAdmin), auditHandler.List)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "upstream", cfg.Upstream.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
