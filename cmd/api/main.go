package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"benome-realtime/config"
	"benome-realtime/internal/events"
	"benome-realtime/internal/handler"
	"benome-realtime/internal/jobs"
	"benome-realtime/internal/redis"
	"benome-realtime/internal/repository"
	"benome-realtime/internal/server"
	"benome-realtime/internal/services"
	"benome-realtime/internal/storage"
	"benome-realtime/internal/websocket"
	"benome-realtime/pkg/database"
	"benome-realtime/pkg/logger"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	presenceTTL  = 5 * time.Minute
	profileTTL   = 10 * time.Minute
	bootDeadline = 15 * time.Second
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.New(logger.DevelopmentMode).Logger.Fatal("invalid configuration", zap.Error(err))
	}

	l := logger.New(cfg.App.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Error("server exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func nodeID(cfg *config.Config) string {
	if cfg.App.NodeID != "" {
		return cfg.App.NodeID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "node"
	}
	return host + "-" + uuid.NewString()[:8]
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	bootCtx, cancel := context.WithTimeout(ctx, bootDeadline)
	defer cancel()

	if err := database.MigrateUp(cfg.Database.URL()); err != nil {
		return err
	}
	db, err := database.Connect(cfg.Database, cfg.App.Mode)
	if err != nil {
		return err
	}
	defer database.Close(db)

	node := nodeID(cfg)
	base := l.Logger.With(zap.String("node_id", node))
	wsLogger := websocket.NewWebSocketLogger(base)

	tx := repository.NewTransactor(db)
	users := repository.NewUserRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)
	notifications := repository.NewNotificationRepository(db)

	checks := map[string]server.HealthChecker{
		"database": func(ctx context.Context) error { return database.HealthCheck(ctx, db) },
	}

	var (
		redisClient   *goredis.Client
		presenceStore services.PresenceStore
		profileCache  services.ProfileCache
		sendLimiter   services.SendLimiter
		rateLimiter   *redis.RateLimiter
	)
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(cfg.Redis)
		defer redisClient.Close()
		if err := redis.Ping(bootCtx, redisClient); err != nil {
			return err
		}
		checks["redis"] = func(ctx context.Context) error { return redis.Ping(ctx, redisClient) }

		presenceStore = redis.NewPresenceStore(redisClient, presenceTTL)
		profileCache = redis.NewProfileCache(redisClient, profileTTL)
		limits := redis.DefaultRateLimitConfig()
		if cfg.Realtime.MessageRateLimit > 0 {
			limits.MessageLimit = cfg.Realtime.MessageRateLimit
		}
		if cfg.Realtime.ConnectionRateLimit > 0 {
			limits.ConnectionLimit = cfg.Realtime.ConnectionRateLimit
		}
		rateLimiter = redis.NewRateLimiter(redisClient, limits)
		sendLimiter = rateLimiter
	}

	hub := websocket.NewHub(cfg.Realtime.MaxConnectionsPerUser, wsLogger)
	defer hub.Close()

	membership := services.NewMembershipService(conversations, base.Named("membership"))
	profiles := services.NewProfileLookup(users, profileCache, base.Named("profiles"))
	notificationService := services.NewNotificationService(tx, notifications, hub, base.Named("notifications"))

	var notifier services.MessageNotifier = notificationService
	var producer *jobs.Producer
	if cfg.Jobs.Enabled {
		producer = jobs.NewProducer(jobs.RedisConnOpt(cfg.Redis))
		defer producer.Close()
		notifier = producer
	}

	messageService := services.NewMessageService(services.MessageServiceDeps{
		Transactor:    tx,
		Messages:      messages,
		Conversations: conversations,
		Membership:    membership,
		Profiles:      profiles,
		Broadcaster:   hub,
		Limiter:       sendLimiter,
		Notifier:      notifier,
		Logger:        base.Named("messages"),
	}, cfg.Realtime.PersistTimeout, services.ReadPolicy(cfg.Realtime.ReadMarkPolicy))
	conversationService := services.NewConversationService(conversations, users, messageService, base.Named("conversations"))
	presenceService := services.NewPresenceService(users, presenceStore, hub, node, base.Named("presence"))
	authService := services.NewAuthService(profiles, cfg.JWT.Secret)

	var presigner services.Presigner
	if cfg.S3.Enabled() {
		s3Client, err := storage.NewClient(bootCtx, cfg.S3)
		if err != nil {
			return err
		}
		presigner = s3Client
	}
	attachmentService := services.NewAttachmentService(presigner)

	registry := websocket.NewSessionRegistry(hub, authService, presenceService, wsLogger)
	wsHandler := websocket.NewHandler(registry, hub, websocket.NewGroupAuthorizer(membership), messageService, presenceService, wsLogger)

	errCh := make(chan error, 2)

	if cfg.Realtime.RelayEnabled {
		relay := events.NewRedisRelay(node, redis.NewPublisher(redisClient), redis.NewSubscriber(redisClient), base.Named("relay"))
		hub.SetRelay(relay)
		ready := make(chan struct{})
		go func() {
			if err := websocket.NewRedisBridge(relay, hub).Run(ctx, ready); err != nil {
				errCh <- err
			}
		}()
		select {
		case <-ready:
		case err := <-errCh:
			return err
		case <-bootCtx.Done():
			return bootCtx.Err()
		}
	}

	if cfg.Jobs.Enabled {
		worker, err := jobs.NewWorker(jobs.RedisConnOpt(cfg.Redis), cfg.Jobs, jobs.NewHandlers(notificationService, presenceService, base.Named("jobs")), base.Named("jobs"))
		if err != nil {
			return err
		}
		go func() {
			if err := worker.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Conversation: handler.NewConversationHandler(conversationService),
		Message:      handler.NewMessageHandler(messageService),
		Notification: handler.NewNotificationHandler(notificationService),
		Presence:     handler.NewPresenceHandler(presenceService),
		Attachment:   handler.NewAttachmentHandler(attachmentService),
		WebSocket:    wsHandler,
	}, authService, rateLimiter, checks)

	serveCtx, cancelServe := context.WithCancel(ctx)
	defer cancelServe()
	go func() {
		select {
		case err := <-errCh:
			l.Error("background component failed", zap.Error(err))
			cancelServe()
		case <-serveCtx.Done():
		}
	}()

	if err := srv.Start(serveCtx); err != nil {
		return err
	}
	if ctx.Err() == nil {
		return errors.New("stopped after a background component failed")
	}
	return nil
}
