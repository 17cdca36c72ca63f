// Package main wires the store, channel, dialog router and background
// jobs behind the webhook server.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatstore/internal/cache"
	"chatstore/internal/channel"
	"chatstore/internal/config"
	"chatstore/internal/dialog"
	"chatstore/internal/handlers"
	"chatstore/internal/jobs"
	"chatstore/internal/locker"
	"chatstore/internal/orders"
	"chatstore/internal/queue"
	"chatstore/internal/repositories"
	"chatstore/internal/routes"
	"chatstore/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const (
	sessionCacheTTL = 30 * time.Minute
	turnLockTTL     = 30 * time.Second
	jobLockTTL      = 2 * time.Minute
	shutdownTimeout = 15 * time.Second
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repositories.OpenDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("⚠️ Failed to close database connection: %v", err)
		}
	}()
	store := repositories.NewStore(db)

	checks := map[string]handlers.Check{"database": sqlDB.PingContext}

	var (
		sessionCache session.Cache
		turnLocks    locker.Locker = locker.NewLocal()
		jobLocks     locker.Locker = locker.NewLocal()
	)
	if cfg.Redis.Enabled {
		client := cache.NewRedisClient(cfg.Redis)
		cacheService := cache.NewCacheService(client, sessionCacheTTL)
		defer func() {
			if err := cacheService.Close(); err != nil {
				log.Printf("⚠️ Failed to close Redis connection: %v", err)
			}
		}()
		if err := cacheService.HealthCheck(ctx); err != nil {
			log.Printf("⚠️ Redis unreachable at startup: %v", err)
		} else {
			log.Println("✅ Redis connected")
		}
		sessionCache = cacheService
		turnLocks = locker.NewRedis(client, "chatstore:turn:", turnLockTTL)
		jobLocks = locker.NewRedis(client, "chatstore:job:", jobLockTTL)
		checks["redis"] = cacheService.HealthCheck
	}

	var ch channel.Channel = channel.NewLimited(channel.NewWhatsApp(cfg.WhatsApp), cfg.Outbound.PerSecond, cfg.Outbound.Burst)

	sessions := session.NewStore(store.Sessions, sessionCache)
	orderManager := orders.NewManager(store, ch, cfg.Platform)
	dispatcher := jobs.NewBroadcastDispatcher(store, ch, jobLocks, cfg.Broadcast)
	router := dialog.NewRouter(store, sessions, turnLocks, ch, orderManager, dispatcher, cfg.Platform)
	monitor := jobs.NewStaleOrderMonitor(store, ch, cfg.Orders)

	scheduler := jobs.NewScheduler(jobLocks)
	scheduler.Every(ctx, jobs.StaleSweepJob, cfg.Orders.SweepInterval, monitor.Run)

	// turns already accepted finish after the shutdown signal
	inbox := handlers.NewInbox(context.WithoutCancel(ctx), router.Route)
	var sink handlers.EventSink = inbox
	consumerDone := make(chan struct{})
	if !cfg.Server.InboundQueue {
		close(consumerDone)
	} else {
		publisher := queue.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		defer publisher.Close()
		sink = handlers.SinkFunc(publisher.Publish)

		consumer := queue.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, router.Route)
		go func() {
			defer close(consumerDone)
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("queue: consumer stopped: %v", err)
			}
		}()
		log.Printf("📨 inbound events go through queue %s", cfg.RabbitMQ.Queue)
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.Platform.Name,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use("/api/ops", limiter.New(limiter.Config{
		Max:        30,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Please try again later.",
			})
		},
	}))

	routes.SetupRoutes(app, routes.Handlers{
		Webhook:      handlers.NewWebhookHandler(cfg.WhatsApp, sink),
		Health:       handlers.NewHealthHandler(checks),
		Ops:          handlers.NewOpsHandler(orderManager, jobs.NewGuardedSweeper(scheduler, monitor), dispatcher),
		OpsJWTSecret: cfg.Server.OpsJWTSecret,
	})

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Printf("server: %v", err)
			stop()
		}
	}()
	log.Printf("🚀 %s listening on :%s", cfg.Platform.Name, cfg.Server.Port)

	<-ctx.Done()
	log.Println("shutting down")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("server: shutdown: %v", err)
	}
	dispatcher.Shutdown()
	scheduler.Wait()
	inbox.Wait()
	<-consumerDone
}
