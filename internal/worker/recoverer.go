package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/pkg/metrics"
	"github.com/qs3c/fbads_go_server/internal/pkg/queue"
	"github.com/qs3c/fbads_go_server/internal/repository"
	"github.com/qs3c/fbads_go_server/internal/service"
)

const (
	recoverInterval   = 5 * time.Minute
	pendingGrace      = 10 * time.Minute
	processingTimeout = 30 * time.Minute
	recoverBatch      = 100
)

// Recoverer 后台修复卡住的同步任务：超时的 processing 记为失败，丢失消息的 pending 重新入队
type Recoverer struct {
	jobRepo *repository.SyncJobRepository
	queue   service.JobQueue
	now     func() time.Time
}

// NewRecoverer 创建修复器
func NewRecoverer(jobRepo *repository.SyncJobRepository, jobQueue service.JobQueue) *Recoverer {
	return &Recoverer{
		jobRepo: jobRepo,
		queue:   jobQueue,
		now:     time.Now,
	}
}

// Start 启动后台修复循环
func (r *Recoverer) Start(ctx context.Context) {
	// 启动后先执行一次
	r.run(ctx)

	ticker := time.NewTicker(recoverInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("recoverer stopped")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

func (r *Recoverer) run(ctx context.Context) {
	now := r.now()

	stuck, err := r.jobRepo.ListStuck(ctx, model.JobStatusProcessing, now.Add(-processingTimeout), recoverBatch)
	if err != nil {
		log.Error().Err(err).Msg("recoverer: failed to query processing jobs")
	}
	for _, job := range stuck {
		err := r.jobRepo.UpdateFields(ctx, job.ID, map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": "任务处理超时",
			"completed_at":  &now,
		})
		if err != nil {
			log.Error().Err(err).Int64("job_id", job.ID).Msg("recoverer: failed to fail job")
			continue
		}
		metrics.SyncJobsTotal.WithLabelValues(job.Kind, model.JobStatusFailed).Inc()
		log.Warn().Int64("job_id", job.ID).Msg("recoverer: processing job timed out")
	}

	pending, err := r.jobRepo.ListStuck(ctx, model.JobStatusPending, now.Add(-pendingGrace), recoverBatch)
	if err != nil {
		log.Error().Err(err).Msg("recoverer: failed to query pending jobs")
		return
	}
	for _, job := range pending {
		err := r.queue.Push(ctx, &queue.JobMessage{
			JobID:       job.ID,
			UserID:      job.UserID,
			AdAccountID: job.AdAccountID,
			Kind:        job.Kind,
		})
		if err != nil {
			log.Error().Err(err).Int64("job_id", job.ID).Msg("recoverer: failed to requeue job")
			continue
		}
		log.Info().Int64("job_id", job.ID).Msg("recoverer: requeued pending job")
	}
}
