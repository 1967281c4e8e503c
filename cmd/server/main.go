package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/api"
	"github.com/qs3c/fbads_go_server/internal/api/handler"
	"github.com/qs3c/fbads_go_server/internal/database"
	"github.com/qs3c/fbads_go_server/internal/pkg/billing"
	"github.com/qs3c/fbads_go_server/internal/pkg/cron"
	"github.com/qs3c/fbads_go_server/internal/pkg/email"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/pkg/keylock"
	"github.com/qs3c/fbads_go_server/internal/pkg/logging"
	"github.com/qs3c/fbads_go_server/internal/pkg/oauth"
	"github.com/qs3c/fbads_go_server/internal/pkg/oss"
	"github.com/qs3c/fbads_go_server/internal/pkg/pubsub"
	"github.com/qs3c/fbads_go_server/internal/pkg/queue"
	"github.com/qs3c/fbads_go_server/internal/pkg/validation"
	"github.com/qs3c/fbads_go_server/internal/pkg/ws"
	"github.com/qs3c/fbads_go_server/internal/repository"
	"github.com/qs3c/fbads_go_server/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log, "server")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if err := validation.Register(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	log.Info().Msg("database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect redis")
	}
	log.Info().Msg("redis connected")

	jobQueue := queue.NewQueue(rdb, cfg.Queue.SyncQueue)
	publisher := pubsub.NewPublisher(rdb)
	wsHub := ws.NewHub()
	mailer := email.NewService(&cfg.Email)
	locks := keylock.New()

	graph := facebook.NewClient(cfg.Facebook.GraphURL(), cfg.Facebook.Timeout())
	fbOAuth := oauth.NewFacebookOAuth(cfg.Facebook.AppID, cfg.Facebook.AppSecret, cfg.Facebook.RedirectURI, cfg.Facebook.GraphURL())

	// 未配置时保持接口为 nil，服务返回 503
	var provider billing.Provider
	if cfg.Stripe.SecretKey != "" {
		provider = billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	} else {
		log.Warn().Msg("stripe not configured, payments disabled")
	}

	var storage service.ExportStorage
	if oss.Configured(&cfg.OSS) {
		ossClient, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Warn().Err(err).Msg("failed to init oss client, exports disabled")
		} else {
			storage = ossClient
			log.Info().Msg("oss client initialized")
		}
	}

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	rbacRepo := repository.NewRBACRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	fbRepo := repository.NewFacebookRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	libRepo := repository.NewAdLibraryRepository(db)
	jobRepo := repository.NewSyncJobRepository(db)

	// 初始化 Service
	rbacService := service.NewRBACService(db, rbacRepo, userRepo, subRepo)
	authService := service.NewAuthService(db, userRepo, sessionRepo, rbacRepo, rbacService, mailer, cfg)
	userService := service.NewUserService(db, userRepo, sessionRepo, rbacRepo, fbRepo, subRepo, rbacService)
	facebookService := service.NewFacebookService(db, fbRepo, jobRepo, graph, fbOAuth, oauth.NewStateStore(rdb), jobQueue, cfg)
	adAccountService := service.NewAdAccountService(fbRepo, campaignRepo, insightRepo)
	campaignService := service.NewCampaignService(fbRepo, campaignRepo, insightRepo, graph)
	insightService := service.NewInsightService(fbRepo, campaignRepo, insightRepo, graph, storage)
	adLibraryService := service.NewAdLibraryService(libRepo, fbRepo, graph)
	paymentService := service.NewPaymentService(subRepo, userRepo, provider, locks, publisher, cfg)
	webhookService := service.NewWebhookService(db, subRepo, rbacRepo, userRepo, locks, publisher, mailer, cfg)

	// 初始化 Router
	router := api.NewRouter(api.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		User:      handler.NewUserHandler(userService, rbacService),
		Facebook:  handler.NewFacebookHandler(facebookService),
		AdAccount: handler.NewAdAccountHandler(adAccountService),
		Campaign:  handler.NewCampaignHandler(campaignService),
		Insight:   handler.NewInsightHandler(insightService),
		AdLibrary: handler.NewAdLibraryHandler(adLibraryService),
		Payment:   handler.NewPaymentHandler(paymentService, webhookService, provider),
		WebSocket: handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins),
	}, authService, rbacService, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// worker 发布的事件转发到本实例的 websocket 连接
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(ctx, func(msg *pubsub.Message) {
			if err := wsHub.SendToUser(msg.UserID, &ws.Message{Type: msg.Type, Data: msg}); err != nil {
				log.Warn().Err(err).Int64("user_id", msg.UserID).Msg("failed to push websocket message")
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("pubsub subscriber stopped")
		}
	}()

	cronService := cron.NewService(authService, facebookService)
	cronService.Start()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Setup(),
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	cronService.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis")
	}
	log.Info().Msg("server stopped")
}
