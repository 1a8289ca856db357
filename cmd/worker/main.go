package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"greengen/internal/cache"
	"greengen/internal/config"
	"greengen/internal/database"
	"greengen/internal/queue"
	"greengen/internal/redis"
	"greengen/internal/repository"
	"greengen/internal/service"
	"greengen/internal/worker"
)

// worker consumes the fan-out stream: feed distribution for published
// posts, follow notifications, and feed pruning after unfollows.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	if err := redisClient.Ping(ctx); err != nil {
		return err
	}

	feedRepo := repository.NewFeedRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	messagingRepo := repository.NewMessagingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	userRepo := repository.NewUserRepository(db)

	feedCache := cache.NewFeedCache(redisClient.Client)
	distribution := service.NewDistributionService(feedRepo, followRepo, postRepo, feedCache)
	messaging := service.NewMessagingService(messagingRepo, notificationRepo, userRepo)

	handler := worker.NewHandler(distribution)
	handler.SetNotifier(messaging)

	consumer := queue.NewConsumer(redisClient.Client)
	manager := worker.NewManager(consumer, handler, cfg.WorkerCount, int64(cfg.WorkerBatchSize))
	if err := manager.Start(ctx); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("[Worker] Shutdown signal received")
	manager.Stop()
	return nil
}
