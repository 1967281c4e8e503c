package cron

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Cleaner 清理过期会话和密码重置令牌
type Cleaner interface {
	PurgeExpired(ctx context.Context) (sessions int64, resetTokens int64, err error)
}

// InsightScheduler 为长时间未同步的广告账户创建同步任务
type InsightScheduler interface {
	EnqueueStaleInsightSyncs(ctx context.Context) (int, error)
}

type Service struct {
	cleaner   Cleaner
	scheduler InsightScheduler
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewService(cleaner Cleaner, scheduler InsightScheduler) *Service {
	return &Service{
		cleaner:   cleaner,
		scheduler: scheduler,
		stopChan:  make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runHourlyCleanup()
	go s.runDailyInsightSync()
	log.Info().Msg("cron service started (session cleanup + insight sync)")
}

// Stop 停止定时任务，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		log.Info().Msg("cron service stopped")
	})
}

// runHourlyCleanup 每小时清理一次
func (s *Service) runHourlyCleanup() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Cleanup(context.Background())
		}
	}
}

// runDailyInsightSync 每日 UTC 零点调度一次
func (s *Service) runDailyInsightSync() {
	now := time.Now().UTC()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	timer := time.NewTimer(nextMidnight.Sub(now))

	for {
		select {
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.ScheduleInsightSync(context.Background())
			timer.Reset(24 * time.Hour)
		}
	}
}

// Cleanup 清理过期会话和重置令牌
func (s *Service) Cleanup(ctx context.Context) {
	if s.cleaner == nil {
		return
	}
	sessions, tokens, err := s.cleaner.PurgeExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cleanup expired sessions failed")
		return
	}
	if sessions > 0 || tokens > 0 {
		log.Info().
			Int64("sessions", sessions).
			Int64("reset_tokens", tokens).
			Msg("cleanup summary")
	}
}

// ScheduleInsightSync 为过期账户入队洞察同步任务
func (s *Service) ScheduleInsightSync(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	n, err := s.scheduler.EnqueueStaleInsightSyncs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("schedule insight sync failed")
		return
	}
	log.Info().Int("jobs", n).Msg("insight sync scheduled")
}
