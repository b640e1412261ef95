package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"silvery-chat/internal/config"
	"silvery-chat/internal/db"
	apihttp "silvery-chat/internal/http"
	"silvery-chat/internal/llm"
	"silvery-chat/internal/repository"
	"silvery-chat/internal/service"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}

	conversationRepo := repository.NewPgConversationRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	entitlementRepo := repository.NewPgEntitlementRepository(pool)
	claimCodeRepo := repository.NewPgClaimCodeRepository(pool)
	profileRepo := repository.NewPgProfileRepository(pool)
	configRepo := repository.NewPgConfigRepository(pool)

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger)

	authSvc := service.NewAuthService(cfg.JWTSecret)
	accessSvc := service.NewAccessService(entitlementRepo, profileRepo, logger)
	redeemSvc := service.NewRedeemService(claimCodeRepo, entitlementRepo, logger)
	chatSvc := service.NewChatService(
		llmClient,
		conversationRepo,
		messageRepo,
		configRepo,
		accessSvc,
		cfg.FreeMessageLimit,
		time.Duration(cfg.StreamIdleSecs)*time.Second,
		logger,
	)

	var requestLimiter service.RequestRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			requestLimiter = service.NewRedisRequestRateLimiter(redisClient, time.Minute, cfg.RateLimitPerMin)
		}
		cancel()
	}

	chatHandler := apihttp.NewChatHandler(logger, chatSvc)
	conversationHandler := apihttp.NewConversationHandler(logger, conversationRepo, messageRepo)
	redeemHandler := apihttp.NewRedeemHandler(logger, redeemSvc)
	configHandler := apihttp.NewConfigHandler(logger, configRepo)
	adminHandler := apihttp.NewAdminHandler(logger, redeemSvc, accessSvc)

	router := apihttp.NewRouter(
		logger,
		authSvc,
		requestLimiter,
		chatHandler,
		conversationHandler,
		redeemHandler,
		configHandler,
		adminHandler,
	)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
