package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/database"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/pkg/logging"
	"github.com/qs3c/fbads_go_server/internal/pkg/pubsub"
	"github.com/qs3c/fbads_go_server/internal/pkg/queue"
	"github.com/qs3c/fbads_go_server/internal/repository"
	"github.com/qs3c/fbads_go_server/internal/service"
	"github.com/qs3c/fbads_go_server/internal/worker"
)

const popTimeout = 5 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.Log, "worker")
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
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

	// 初始化 Queue 和 Pub/Sub
	jobQueue := queue.NewQueue(rdb, cfg.Queue.SyncQueue)
	publisher := pubsub.NewPublisher(rdb)

	// 初始化 Repository
	fbRepo := repository.NewFacebookRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	jobRepo := repository.NewSyncJobRepository(db)

	graph := facebook.NewClient(cfg.Facebook.GraphURL(), cfg.Facebook.Timeout())
	syncService := service.NewSyncService(db, fbRepo, campaignRepo, insightRepo, graph)

	// 创建任务处理器
	processor := worker.NewProcessor(jobRepo, syncService, publisher)
	recoverer := worker.NewRecoverer(jobRepo, jobQueue)

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
	}()

	go recoverer.Start(ctx)

	workers := cfg.Queue.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	log.Info().Int("max_workers", workers).Str("queue", cfg.Queue.SyncQueue).Msg("worker started")

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			logger := log.With().Int("worker_id", workerID).Logger()
			for {
				select {
				case <-ctx.Done():
					logger.Info().Msg("worker shutting down")
					return
				default:
				}

				// 从队列获取任务
				msg, err := jobQueue.Pop(ctx, popTimeout)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Error().Err(err).Msg("failed to pop job")
					time.Sleep(time.Second)
					continue
				}
				if msg == nil {
					continue // 超时，继续等待
				}

				logger.Info().Int64("job_id", msg.JobID).Str("kind", msg.Kind).Msg("processing job")
				if err := processor.Process(ctx, msg); err != nil {
					logger.Error().Err(err).Int64("job_id", msg.JobID).Msg("job failed")
				}
			}
		}(i)
	}

	// 等待正在处理的任务结束
	wg.Wait()
	if err := rdb.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close redis")
	}
	log.Info().Msg("worker shutdown complete")
}
