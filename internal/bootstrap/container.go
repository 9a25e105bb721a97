package bootstrap

import (
	"context"
	"log"

	"ai-review-be/internal/config"
	"ai-review-be/internal/controller"
	"ai-review-be/internal/handler"
	"ai-review-be/internal/pkg/logger"
	"ai-review-be/internal/repository/memory"
	"ai-review-be/internal/repository/unitofwork"
	"ai-review-be/internal/review/progress"
	"ai-review-be/internal/service"
	"ai-review-be/internal/websocket"

	pktNats "ai-review-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ReviewController controller.IReviewController

	// Streaming
	ReviewStreamHandler *handler.ReviewStreamHandler
	WebSocketHub        *websocket.Hub

	// Infrastructure the server shuts down
	EventBus      *gochannel.GoChannel
	NatsPublisher *pktNats.Publisher
	Redis         *redis.Client
}

// NewContainer wires the application. db may be nil, in which case finished
// reviews are only kept in memory.
func NewContainer(ctx context.Context, db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	var archive service.IArchiveService
	if db != nil {
		archive = service.NewArchiveService(unitofwork.NewRepositoryFactory(db), sysLogger)
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)

	// 3. Infrastructure (optional)
	// NATS
	var natsPub *pktNats.Publisher
	var natsEvents progress.EventPublisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(pktNats.DefaultConfig(cfg.App.NatsURL))
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
			natsEvents = pub
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{
				Addr: cfg.App.RedisURL,
			}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
			rdb = nil
		}
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/stream.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run(ctx)

	// 4. Services
	engine, err := NewReviewEngine(cfg, sysLogger)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize review engine: %v", err)
	}

	jobRepo := memory.NewJobRepository(cfg.Review.JobTTL)
	reviewService := service.NewReviewService(
		engine,
		jobRepo,
		archive,
		pubSub,
		wsHub,
		natsEvents,
		sysLogger,
	)

	// 5. Controllers
	return &Container{
		ReviewController:    controller.NewReviewController(reviewService),
		ReviewStreamHandler: handler.NewReviewStreamHandler(reviewService, wsHub, wsLogger),
		WebSocketHub:        wsHub,

		EventBus:      pubSub,
		NatsPublisher: natsPub,
		Redis:         rdb,
	}
}

// Close releases the connections opened by NewContainer.
func (c *Container) Close() {
	if c.EventBus != nil {
		c.EventBus.Close()
	}
	if c.NatsPublisher != nil {
		c.NatsPublisher.Close()
	}
	if c.Redis != nil {
		c.Redis.Close()
	}
}
