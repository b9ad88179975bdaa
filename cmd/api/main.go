package main

import (
	"context"
	"log"
	"time"

	"collabchat/internal/config"
	"collabchat/internal/handler"
	"collabchat/internal/redis"
	"collabchat/internal/repository"
	"collabchat/internal/server"
	"collabchat/internal/services"
	"collabchat/internal/websocket"
	"collabchat/pkg/database"
	"collabchat/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	mode := logger.DevelopmentMode
	if cfg.Server.Environment == "production" {
		mode = logger.ProductionMode
	}
	l := logger.New(mode)
	defer func() { _ = l.Logger.Sync() }()

	db, err := database.Connect(cfg)
	if err != nil {
		l.Errorf("failed to connect to database: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		l.Errorf("failed to connect to redis: %v", err)
		return
	}
	defer func() { _ = redisClient.Close() }()

	presence := redis.NewPresenceStore(redisClient, 2*time.Minute)
	limiter := redis.NewRateLimiter(redisClient, cfg.Limits.SendPerMinute, time.Minute)

	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	userRepo := repository.NewUserRepository(db)

	hub := websocket.NewHub()
	go hub.Run(ctx)

	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	messageService := services.NewMessageService(messageRepo, conversationRepo, userRepo, hub, l)
	conversationService := services.NewConversationService(conversationRepo, userRepo, presence, l)

	authorizer := websocket.NewRoomAuthorizer(conversationRepo)
	gatewayHandler := websocket.NewHandler(authService, messageService, authorizer, hub, presence, limiter, l)

	srv := server.New(cfg, l)
	srv.SetupRoutes(&server.Handlers{
		Conversations: handler.NewConversationHandler(conversationService),
		Messages:      handler.NewMessageHandler(messageService),
		Gateway:       gatewayHandler,
	}, authService, limiter)

	if err := srv.Start(); err != nil {
		l.Errorf("server exited with error: %v", err)
	}
}
