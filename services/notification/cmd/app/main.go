package main

import (
	"context"
	"time"

	"opsdash/pkg/cache"
	"opsdash/pkg/config"
	"opsdash/pkg/database"
	"opsdash/pkg/logger"
	"opsdash/pkg/queue"
	"opsdash/pkg/telemetry"
	notificationApp "opsdash/services/notification/internal/app"

	"github.com/gin-gonic/gin"
)

// @title           Notification Service API
// @version         1.0
// @description     Notification service: stored notifications, templates, push subscriptions and realtime delivery.

// @host      localhost:8006
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New()

	shutdownTracing, err := telemetry.Init(context.Background(), cfg.OTELServiceName, log)
	if err != nil {
		log.Warn("Tracing disabled: %v", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				log.Error("Failed to flush traces: %v", err)
			}
		}()
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		log.Error("Failed to connect to database: %v", err)
		panic(err)
	}

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("Failed to connect to redis: %v", err)
		panic(err)
	}

	queueClient, err := queue.NewRabbitMQClient(cfg, log)
	if err != nil {
		log.Warn("RabbitMQ unavailable, producer ingest disabled: %v", err)
		queueClient = nil
	}

	notificationApp.Run(cfg, log, db, redisClient, queueClient)
}
