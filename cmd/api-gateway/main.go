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
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/openlearn/lms-api/api/swagger"
	"github.com/openlearn/lms-api/internal/handler"
	"github.com/openlearn/lms-api/internal/middleware"
	"github.com/openlearn/lms-api/internal/models"
	"github.com/openlearn/lms-api/internal/repository"
	"github.com/openlearn/lms-api/internal/service"
	"github.com/openlearn/lms-api/pkg/cache"
	"github.com/openlearn/lms-api/pkg/config"
	"github.com/openlearn/lms-api/pkg/database"
	"github.com/openlearn/lms-api/pkg/jobs"
	"github.com/openlearn/lms-api/pkg/logger"
	"github.com/openlearn/lms-api/pkg/mailer"
	corsmiddleware "github.com/openlearn/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/openlearn/lms-api/pkg/middleware/requestid"
	"github.com/openlearn/lms-api/pkg/storage"
)

// @title OpenLearn LMS API
// @version 1.0.0
// @description Course authoring, enrollment, quizzes and progress tracking
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

	metricsService := service.NewMetricsService()

	cacheEnabled := true
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		cacheEnabled = false
	} else {
		defer redisClient.Close() //nolint:errcheck
	}
	var cacheRepo service.CacheRepository
	if cacheEnabled {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, cacheEnabled)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	lessonRepo := repository.NewLessonRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	reportingRepo := repository.NewReportingRepository(db)

	mailSender, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to init mailer", "error", err)
	}
	mailQueue := jobs.NewQueue("mail", service.MailJobHandler(mailSender, logr), jobs.QueueConfig{
		Workers:    cfg.Invites.WorkerConcurrency,
		MaxRetries: cfg.Invites.WorkerRetries,
		Logger:     logr,
	})
	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	validate := validator.New()

	authService := service.NewAuthService(userRepo, mailQueue, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenExpiry:   30 * time.Minute,
		Issuer:             cfg.JWT.Issuer,
	})
	userService := service.NewUserService(userRepo, validate, logr)
	courseService := service.NewCourseService(courseRepo, lessonRepo, cacheService, validate, logr)
	enrollmentService := service.NewEnrollmentService(enrollmentRepo, courseRepo, userRepo, mailQueue, validate, logr)
	lessonService := service.NewLessonService(lessonRepo, courseRepo, enrollmentService, validate, logr)
	quizService := service.NewQuizService(quizRepo, courseRepo, lessonRepo, metricsService, validate, logr)
	progressService := service.NewProgressService(progressRepo, lessonRepo, courseRepo, enrollmentService, validate, logr)
	reviewService := service.NewReviewService(reviewRepo, courseRepo, enrollmentRepo, validate, logr)
	reportingService := service.NewReportingService(reportingRepo, courseRepo, cacheService, logr)

	store, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	courseHandler := handler.NewCourseHandler(courseService)
	lessonHandler := handler.NewLessonHandler(lessonService)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentService)
	quizHandler := handler.NewQuizHandler(quizService)
	progressHandler := handler.NewProgressHandler(progressService)
	reviewHandler := handler.NewReviewHandler(reviewService)
	reportingHandler := handler.NewReportingHandler(reportingService)
	uploadHandler := handler.NewUploadHandler(store, signer, lessonService, cfg.Uploads.MaxFileSizeBytes, cfg.Uploads.AllowedMIMEs)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	var purger *cron.Cron
	if cfg.Cleanup.Enabled {
		purger = cron.New()
		_, err := purger.AddFunc(cfg.Cleanup.Schedule, func() {
			if _, err := authService.PurgeExpiredRefreshTokens(context.Background()); err != nil {
				logr.Warn("refresh token purge failed", zap.Error(err))
			}
		})
		if err != nil {
			logr.Sugar().Fatalw("invalid cleanup schedule", "schedule", cfg.Cleanup.Schedule, "error", err)
		}
		purger.Start()
		defer purger.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	requireAuth := middleware.JWT(authService)
	optionalAuth := middleware.OptionalJWT(authService)
	instructorOnly := middleware.RequireRoles(models.RoleInstructor, models.RoleAdmin)

	api := r.Group(cfg.APIPrefix)
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", requireAuth, authHandler.Logout)
			auth.POST("/change-password", requireAuth, authHandler.ChangePassword)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
		}

		users := api.Group("/users")
		{
			users.GET("/me", requireAuth, userHandler.Me)
			users.PATCH("/me", requireAuth, userHandler.UpdateProfile)
			users.GET("/:username", userHandler.PublicProfile)
		}

		courses := api.Group("/courses")
		{
			courses.GET("", optionalAuth, courseHandler.List)
			courses.POST("", requireAuth, instructorOnly, courseHandler.Create)
			courses.GET("/:id", optionalAuth, courseHandler.Get)
			courses.PATCH("/:id", requireAuth, courseHandler.Update)
			courses.DELETE("/:id", requireAuth, courseHandler.Delete)
			courses.POST("/:id/publish", requireAuth, courseHandler.Publish)
			courses.POST("/:id/unpublish", requireAuth, courseHandler.Unpublish)

			courses.GET("/:id/lessons", optionalAuth, lessonHandler.ListByCourse)
			courses.POST("/:id/lessons", requireAuth, lessonHandler.Create)

			courses.GET("/:id/quizzes", requireAuth, quizHandler.ListByCourse)

			courses.POST("/:id/enroll", requireAuth, enrollmentHandler.Enroll)
			courses.POST("/:id/invites", requireAuth, enrollmentHandler.Invite)
			courses.PATCH("/:id/enrollment", requireAuth, enrollmentHandler.UpdateStatus)

			courses.GET("/:id/progress", requireAuth, progressHandler.CourseProgress)

			courses.GET("/:id/reviews", reviewHandler.ListByCourse)
			courses.POST("/:id/reviews", requireAuth, reviewHandler.Create)
		}

		lessons := api.Group("/lessons")
		{
			lessons.GET("/:id", optionalAuth, lessonHandler.Get)
			lessons.PATCH("/:id", requireAuth, lessonHandler.Update)
			lessons.DELETE("/:id", requireAuth, lessonHandler.Delete)
			lessons.GET("/:id/attachments", optionalAuth, lessonHandler.ListAttachments)
			lessons.POST("/:id/attachments", requireAuth, lessonHandler.AddAttachment)
			lessons.GET("/:id/progress", requireAuth, progressHandler.LessonProgress)
			lessons.POST("/:id/progress", requireAuth, progressHandler.Track)
		}

		attachments := api.Group("/attachments")
		{
			attachments.DELETE("/:id", requireAuth, lessonHandler.RemoveAttachment)
			attachments.GET("/:id/download", requireAuth, uploadHandler.DownloadLink)
		}

		quizzes := api.Group("/quizzes", requireAuth)
		{
			quizzes.POST("", quizHandler.Create)
			quizzes.GET("/:id", quizHandler.Get)
			quizzes.PATCH("/:id", quizHandler.Update)
			quizzes.POST("/:id/questions", quizHandler.AddQuestion)
			quizzes.PUT("/:id/rewards", quizHandler.SetRewards)
			quizzes.GET("/:id/attempts", quizHandler.ListAttempts)
			quizzes.POST("/:id/attempts", quizHandler.SubmitAttempt)
		}

		questions := api.Group("/questions", requireAuth)
		{
			questions.PUT("/:id", quizHandler.UpdateQuestion)
			questions.DELETE("/:id", quizHandler.DeleteQuestion)
		}

		api.DELETE("/reviews/:id", requireAuth, reviewHandler.Delete)

		me := api.Group("/me", requireAuth)
		{
			me.GET("/enrollments", enrollmentHandler.MyEnrollments)
			me.GET("/invites", enrollmentHandler.PendingInvites)
			me.GET("/stats", progressHandler.Stats)
		}

		reports := api.Group("/reports", requireAuth, instructorOnly)
		{
			reports.GET("/courses/:id/funnel", reportingHandler.Funnel)
			reports.GET("/courses/:id/learners", reportingHandler.Learners)
			reports.GET("/overview", reportingHandler.Overview)
		}

		api.POST("/uploads", requireAuth, instructorOnly, uploadHandler.Upload)
		api.GET("/files", uploadHandler.ServeFile)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
