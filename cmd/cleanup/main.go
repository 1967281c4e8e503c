package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/database"
	"github.com/qs3c/fbads_go_server/internal/pkg/logging"
	"github.com/qs3c/fbads_go_server/internal/repository"
	"github.com/qs3c/fbads_go_server/internal/service"
)

var (
	dryRun  = flag.Bool("dry-run", true, "Only count expired rows, don't delete them")
	timeout = flag.Duration("timeout", 5*time.Minute, "Abort the cleanup after this long")
)

func main() {
	flag.Parse()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log, "cleanup")

	// 连接数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	rbacRepo := repository.NewRBACRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	rbacService := service.NewRBACService(db, rbacRepo, userRepo, subRepo)
	authService := service.NewAuthService(db, userRepo, sessionRepo, rbacRepo, rbacService, nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Info().Bool("dry_run", *dryRun).Msg("starting cleanup")

	if *dryRun {
		sessions, tokens, err := authService.CountExpired(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to count expired rows")
		}
		log.Info().
			Int64("expired_sessions", sessions).
			Int64("expired_reset_tokens", tokens).
			Msg("dry run, nothing deleted; run with -dry-run=false to purge")
		return
	}

	sessions, tokens, err := authService.PurgeExpired(ctx)
	if err != nil {
		log.Fatal().Err(err).Int64("sessions_deleted", sessions).Msg("cleanup failed")
	}
	log.Info().
		Int64("sessions_deleted", sessions).
		Int64("reset_tokens_cleared", tokens).
		Msg("cleanup completed")
}
