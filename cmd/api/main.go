package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/osei-dev/pastq-api/api/swagger"
	"github.com/osei-dev/pastq-api/internal/handler"
	internalmiddleware "github.com/osei-dev/pastq-api/internal/middleware"
	"github.com/osei-dev/pastq-api/internal/repository"
	"github.com/osei-dev/pastq-api/internal/service"
	"github.com/osei-dev/pastq-api/pkg/cache"
	"github.com/osei-dev/pastq-api/pkg/config"
	"github.com/osei-dev/pastq-api/pkg/database"
	"github.com/osei-dev/pastq-api/pkg/jobs"
	"github.com/osei-dev/pastq-api/pkg/logger"
	corsmiddleware "github.com/osei-dev/pastq-api/pkg/middleware/cors"
	reqidmiddleware "github.com/osei-dev/pastq-api/pkg/middleware/requestid"
	"github.com/osei-dev/pastq-api/pkg/storage"
)

// @title PastQ API
// @version 1.0.0
// @description University past exam paper repository
// @BasePath /api/v1
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := database.Migrate(ctx, db); err != nil {
		logr.Sugar().Fatalw("failed to run migrations", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, listings will not be cached", "error", err)
		redisClient = nil
	}

	uploadStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	pastQuestionRepo := repository.NewPastQuestionRepository(db)
	statLedger := repository.NewStatLedgerRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	notifications := service.NewNotificationService(jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)
	notifications.Start(ctx)
	defer notifications.Stop()

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, statLedger, logr)
	courseSvc := service.NewCourseService(courseRepo, cacheRepo, userRepo, cfg.Cache.CourseTTL, logr)
	pastQuestionSvc := service.NewPastQuestionService(
		pastQuestionRepo,
		statLedger,
		courseRepo,
		uploadStorage,
		userRepo,
		notifications,
		cacheRepo,
		service.UploadLimits{
			MaxFileSizeBytes:  cfg.Uploads.MaxFileSizeBytes,
			AllowedExtensions: cfg.Uploads.AllowedExtensions,
			MinYear:           cfg.Uploads.MinYear,
		},
		logr,
	)
	reportSvc := service.NewReportService(pastQuestionRepo, reportStorage, reportSigner, userRepo, cfg.Reports.CleanupAfter, logr)

	go reportCleanupLoop(ctx, reportSvc, cfg.Reports.CleanupAfter)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	pastQuestionHandler := handler.NewPastQuestionHandler(pastQuestionSvc, metricsSvc)
	reportHandler := handler.NewReportHandler(reportSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", internalmiddleware.JWT(authSvc), authHandler.Logout)
		auth.PUT("/change-password", internalmiddleware.JWT(authSvc), authHandler.ChangePassword)
	}

	users := api.Group("/users", internalmiddleware.JWT(authSvc))
	{
		users.GET("/me", userHandler.Me)
		users.PATCH("/me", userHandler.UpdateMe)
		users.DELETE("/me", userHandler.DeleteMe)
		users.GET("/me/downloads", pastQuestionHandler.ListMyDownloads)
		users.GET("", internalmiddleware.RequireAdmin(), userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.PUT("/:id/roles", internalmiddleware.RequireAdmin(), userHandler.SetRoleFlags)
		users.POST("/:id/reputation", internalmiddleware.RequireAdmin(), userHandler.AdjustReputation)
		users.POST("/:id/deactivate", internalmiddleware.RequireAdmin(), userHandler.Deactivate)
		users.DELETE("/:id", internalmiddleware.RequireAdmin(), userHandler.Delete)
	}

	courses := api.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/faculties", courseHandler.Faculties)
		courses.GET("/departments", courseHandler.Departments)
		courses.GET("/popular", courseHandler.Popular)
		courses.GET("/code/:code", courseHandler.GetByCode)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", internalmiddleware.JWT(authSvc), internalmiddleware.RequireModerator(), courseHandler.Create)
		courses.PUT("/:id", internalmiddleware.JWT(authSvc), internalmiddleware.RequireModerator(), courseHandler.Update)
		courses.DELETE("/:id", internalmiddleware.JWT(authSvc), internalmiddleware.RequireModerator(), courseHandler.Delete)
	}

	pastQuestions := api.Group("/past-questions")
	{
		pastQuestions.GET("", internalmiddleware.OptionalJWT(authSvc), pastQuestionHandler.List)
		pastQuestions.GET("/popular", pastQuestionHandler.ListPopular)
		pastQuestions.GET("/pending", internalmiddleware.JWT(authSvc), internalmiddleware.RequireModerator(), pastQuestionHandler.ListPending)
		pastQuestions.GET("/mine", internalmiddleware.JWT(authSvc), pastQuestionHandler.ListMine)
		pastQuestions.GET("/:id", internalmiddleware.OptionalJWT(authSvc), pastQuestionHandler.Get)
		pastQuestions.POST("", internalmiddleware.JWT(authSvc), internalmiddleware.RequireActive(), pastQuestionHandler.Upload)
		pastQuestions.POST("/:id/approve", internalmiddleware.JWT(authSvc), internalmiddleware.RequireModerator(), pastQuestionHandler.Approve)
		pastQuestions.POST("/:id/reject", internalmiddleware.JWT(authSvc), internalmiddleware.RequireModerator(), pastQuestionHandler.Reject)
		pastQuestions.GET("/:id/download", internalmiddleware.JWT(authSvc), pastQuestionHandler.Download)
		pastQuestions.GET("/:id/history", internalmiddleware.JWT(authSvc), internalmiddleware.RequireModerator(), pastQuestionHandler.History)
	}

	reports := api.Group("/reports")
	{
		reports.POST("", internalmiddleware.JWT(authSvc), internalmiddleware.RequireModerator(), reportHandler.Generate)
		reports.GET("/download", reportHandler.Download)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

func reportCleanupLoop(ctx context.Context, reports *service.ReportService, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reports.Cleanup()
		}
	}
}
