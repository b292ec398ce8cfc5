package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/campushq/timetable-api/api/swagger"
	"github.com/campushq/timetable-api/internal/handler"
	"github.com/campushq/timetable-api/internal/middleware"
	"github.com/campushq/timetable-api/internal/models"
	"github.com/campushq/timetable-api/internal/repository"
	"github.com/campushq/timetable-api/internal/service"
	"github.com/campushq/timetable-api/pkg/cache"
	"github.com/campushq/timetable-api/pkg/config"
	"github.com/campushq/timetable-api/pkg/database"
	"github.com/campushq/timetable-api/pkg/logger"
	corsmiddleware "github.com/campushq/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campushq/timetable-api/pkg/middleware/requestid"
)

// @title CampusHQ Timetable API
// @version 1.0.0
// @description Multi-tenant lesson scheduling with conflict detection and a change-request workflow
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, timetable cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	tx := database.NewTransactor(db, cfg.Scheduling.TxMaxRetries)

	userRepo := repository.NewUserRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	unavailabilityRepo := repository.NewUnavailabilityRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            "timetable-api",
	})
	checker := service.NewConflictChecker(lessonRepo, unavailabilityRepo, workingHoursFromConfig(cfg, logr), logr)
	timetableSvc := service.NewTimetableService(lessonRepo, cacheSvc, cfg.Cache.TTL, logr)
	lessonSvc := service.NewLessonService(lessonRepo, rosterRepo, checker, tx, auditRepo, timetableSvc, validate, logr)
	unavailabilitySvc := service.NewUnavailabilityService(unavailabilityRepo, rosterRepo, tx, validate, logr)
	changeRequestSvc := service.NewChangeRequestService(changeRequestRepo, lessonRepo, rosterRepo, checker, tx, auditRepo, timetableSvc, validate, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	lessonHandler := handler.NewLessonHandler(lessonSvc)
	unavailabilityHandler := handler.NewUnavailabilityHandler(unavailabilitySvc)
	changeRequestHandler := handler.NewChangeRequestHandler(changeRequestSvc)
	timetableHandler := handler.NewTimetableHandler(timetableSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", middleware.Audit(auditRepo, models.AuditActionLogin, "auth"), authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/auth/me", authHandler.Me)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	teacherOnly := middleware.RequireRoles(models.RoleTeacher)

	lessons := authed.Group("/lessons")
	{
		lessons.GET("", anyRole, lessonHandler.List)
		lessons.GET("/:id", anyRole, lessonHandler.Get)
		lessons.POST("/check", adminOnly, lessonHandler.Check)
		lessons.POST("", adminOnly, lessonHandler.Create)
		lessons.PUT("/:id", adminOnly, lessonHandler.Update)
		lessons.PATCH("/:id/schedule", adminOnly, lessonHandler.Reschedule)
		lessons.DELETE("/:id", adminOnly, lessonHandler.Delete)
	}

	teachers := authed.Group("/teachers")
	{
		teachers.GET("/:id/unavailability", anyRole, unavailabilityHandler.List)
		teachers.POST("/:id/unavailability", anyRole, unavailabilityHandler.Create)
		teachers.PUT("/:id/unavailability/:blockId", anyRole, unavailabilityHandler.Update)
		teachers.DELETE("/:id/unavailability/:blockId", anyRole, unavailabilityHandler.Delete)
	}

	requests := authed.Group("/change-requests")
	{
		requests.GET("", anyRole, changeRequestHandler.List)
		requests.GET("/:id", anyRole, changeRequestHandler.Get)
		requests.POST("", teacherOnly, changeRequestHandler.Submit)
		requests.POST("/:id/cancel", teacherOnly, changeRequestHandler.Cancel)
		requests.POST("/:id/approve", adminOnly, changeRequestHandler.Approve)
		requests.POST("/:id/reject", adminOnly, changeRequestHandler.Reject)
	}

	timetables := authed.Group("/timetables")
	{
		timetables.GET("/classes/:id", anyRole, timetableHandler.ForClass)
		timetables.GET("/teachers/:id", anyRole, timetableHandler.ForTeacher)
		timetables.GET("/classes/:id/export", anyRole, timetableHandler.Export("class"))
		timetables.GET("/teachers/:id/export", anyRole, timetableHandler.Export("teacher"))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

// workingHoursFromConfig parses the configured workday bounds, falling back
// to the default policy on malformed values.
func workingHoursFromConfig(cfg *config.Config, logr *zap.Logger) service.WorkingHoursPolicy {
	start, err := models.ParseClockTime(cfg.Scheduling.WorkdayStart)
	if err != nil {
		logr.Warn("invalid WORKDAY_START, using default working hours", zap.Error(err))
		return service.DefaultWorkingHours
	}
	end, err := models.ParseClockTime(cfg.Scheduling.WorkdayEnd)
	if err != nil {
		logr.Warn("invalid WORKDAY_END, using default working hours", zap.Error(err))
		return service.DefaultWorkingHours
	}
	return service.WorkingHoursPolicy{Start: start, End: end}
}
