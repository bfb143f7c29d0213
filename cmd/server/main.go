// @title SchoolBox API
// @version 1.0
// @description School management backend with an AI email-intelligence pipeline
// @contact.name SchoolBox Support
// @contact.email support@example.com
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"context"
	"log"

	"schoolbox-be/config"
	"schoolbox-be/internal/database"
	"schoolbox-be/internal/handlers"
	"schoolbox-be/internal/middleware"
	"schoolbox-be/internal/repository"
	"schoolbox-be/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	_ "schoolbox-be/docs"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	mongodb, err := database.NewMongoDB(cfg.MongoDBURI, cfg.MongoDBDatabase)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer mongodb.Disconnect()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mongodb.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create indexes", zap.Error(err))
	}

	// Repositories
	userRepo := repository.NewUserRepository(mongodb.Database)
	emailRepo := repository.NewEmailRepository(mongodb.Database)
	waitlistRepo := repository.NewWaitlistRepository(mongodb.Database)
	statsRepo := repository.NewStatisticsRepository(mongodb.Database)

	// Services
	gmailService := services.NewGmailService(cfg, logger.Named("gmail"))
	classifier := services.NewOpenAIClassifier(
		cfg.OpenAIAPIKey,
		cfg.OpenAIModel,
		cfg.OpenAIMaxTokens,
		cfg.OpenAITemperature,
		cfg.OpenAIMaxBodySize,
		logger.Named("classifier"),
	)
	router := services.NewActionRouter(emailRepo, waitlistRepo, gmailService, gmailService, cfg.ProviderTimeout, logger.Named("router"))
	pipeline := services.NewPipeline(gmailService, classifier, emailRepo, router, logger.Named("pipeline"), services.PipelineConfig{
		PollWindow:      cfg.PollWindow,
		MaxBatchSize:    cfg.MaxBatchSize,
		Workers:         cfg.BatchWorkers,
		ProviderTimeout: cfg.ProviderTimeout,
	})

	// Background polling
	scheduler := services.NewScheduler(pipeline, cfg.PollInterval, logger.Named("scheduler"))
	scheduler.Start(ctx)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, userRepo)
	emailHandler := handlers.NewEmailHandler(emailRepo)
	pipelineHandler := handlers.NewPipelineHandler(pipeline, emailRepo, gmailService)
	waitlistHandler := handlers.NewWaitlistHandler(waitlistRepo)
	statsHandler := handlers.NewStatisticsHandler(statsRepo, waitlistRepo)

	r := gin.Default()
	r.Use(middleware.CORS(cfg))

	// Public routes
	public := r.Group("/api")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":   "ok",
				"message":  "SchoolBox API is running",
				"database": "MongoDB connected",
			})
		})

		auth := public.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
		}
	}

	// Protected routes
	protected := r.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.GetMe)

		protected.GET("/emails", emailHandler.GetEmails)
		protected.GET("/emails/:emailId", emailHandler.GetEmailDetail)
		protected.POST("/emails/search", emailHandler.Search)
		protected.POST("/emails/:emailId/escalate", emailHandler.Escalate)
		protected.POST("/emails/:emailId/respond", pipelineHandler.Respond)

		protected.POST("/pipeline/run", pipelineHandler.RunNow)
		protected.POST("/pipeline/emails/:emailId/process", pipelineHandler.ProcessEmail)

		protected.GET("/waitlist", waitlistHandler.GetWaitlist)
		protected.PATCH("/waitlist/:id/status", waitlistHandler.UpdateStatus)

		protected.GET("/statistics", statsHandler.GetStatistics)
	}

	// Operational endpoints
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	logger.Info("server starting",
		zap.String("port", cfg.Port),
		zap.String("database", cfg.MongoDBDatabase),
		zap.Duration("pollInterval", cfg.PollInterval))

	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
