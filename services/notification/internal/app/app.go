package internal

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opsdash/pkg/config"
	"opsdash/pkg/jwt"
	"opsdash/pkg/logger"
	"opsdash/pkg/middleware"
	"opsdash/pkg/queue"
	"opsdash/pkg/telemetry"
	notificationHTTP "opsdash/services/notification/internal/controller/http"
	"opsdash/services/notification/internal/presence"
	"opsdash/services/notification/internal/repo/persistent"
	"opsdash/services/notification/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "opsdash/services/notification/docs" // Swagger docs
)

// Service holds the wired components of one notification service instance.
type Service struct {
	Router   *gin.Engine
	Notifier *usecase.Notifier
	Registry *presence.Registry
	Relay    *presence.RedisRelay
}

// New wires repositories, use cases, presence and the HTTP routes. redisClient
// and queueClient may be nil; the relay, rate limiting and queue routes are
// then left out.
func New(cfg *config.Config, log *logger.Logger, db *gorm.DB, redisClient *redis.Client, queueClient *queue.Client) *Service {
	jwtService := jwt.NewService(cfg.JWTSecret)

	// Initialize Repositories
	notificationRepo := persistent.NewNotificationRepository(db)
	templateRepo := persistent.NewTemplateRepository(db)
	pushRepo := persistent.NewPushSubscriptionRepository(db)

	// Initialize Presence
	registry := presence.NewRegistry(log)
	dispatcher := presence.NewDispatcher(registry, log)
	var sender usecase.RealtimeSender = presence.NewLocalSender(dispatcher)
	var relay *presence.RedisRelay
	if cfg.RealtimeRelayEnabled && redisClient != nil {
		relay = presence.NewRedisRelay(redisClient, dispatcher, log)
		sender = relay
	}

	// Initialize UseCases
	templates := usecase.NewTemplateEngine(templateRepo)
	notificationUseCase := usecase.NewNotificationUseCase(notificationRepo, templates, log)
	pushUseCase := usecase.NewPushUseCase(pushRepo, log)
	notifier := usecase.NewNotifier(notificationUseCase, sender, log)

	// Initialize HTTP handlers
	handlers := notificationHTTP.Handlers{
		Notifications: notificationHTTP.NewNotificationHandler(notificationUseCase, notifier, templates, log),
		Push:          notificationHTTP.NewPushHandler(pushUseCase, log),
		WebSocket:     notificationHTTP.NewWebSocketHandler(registry, dispatcher, sender, jwtService, log),
	}
	if queueClient != nil {
		handlers.Queue = notificationHTTP.NewQueueHandler(queueClient, log)
	}

	internalMiddleware := func(c *gin.Context) { c.Next() }
	if redisClient != nil {
		internalMiddleware = middleware.RateLimitMiddleware(redisClient, cfg.NotificationRateLimit, cfg.NotificationRateWindow)
	}

	// Setup router
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"presence": dispatcher.Stats(),
		})
	})

	// Swagger documentation
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	notificationHTTP.RegisterRoutes(r.Group("/api/v1"), handlers, middleware.AuthMiddleware(jwtService), internalMiddleware)

	return &Service{
		Router:   r,
		Notifier: notifier,
		Registry: registry,
		Relay:    relay,
	}
}

func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, redisClient *redis.Client, queueClient *queue.Client) {
	svc := New(cfg, log, db, redisClient, queueClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           telemetry.HTTPMiddleware(cfg.OTELServiceName)(svc.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if svc.Relay != nil {
		go func() {
			if err := svc.Relay.Run(ctx); err != nil {
				log.Error("[RELAY] Stopped: %v", err)
			}
		}()
	} else {
		log.Info("[RELAY] Disabled, realtime delivery is local to this instance")
	}

	// Start consuming producer tasks
	if queueClient != nil {
		if err := queueClient.ConsumeNotificationTasks(svc.Notifier.HandleTask); err != nil {
			log.Error("Error starting notification queue consumer: %v", err)
		}
	}

	// Start server in a goroutine
	go func() {
		log.Info("Notification service starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down notification service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing RabbitMQ: %v", err)
		}
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis: %v", err)
		}
	}

	log.Info("Notification service exited")
}
