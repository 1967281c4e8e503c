package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/pkg/metrics"
	"github.com/qs3c/fbads_go_server/internal/pkg/pubsub"
	"github.com/qs3c/fbads_go_server/internal/pkg/queue"
	"github.com/qs3c/fbads_go_server/internal/repository"
	"github.com/qs3c/fbads_go_server/internal/service"
)

// Syncer 执行实际的同步，由 service.SyncService 实现
type Syncer interface {
	Sync(ctx context.Context, job *model.SyncJob, onStep service.SyncStep) (int, error)
}

// Publisher 推送进度，由 pubsub.Publisher 实现
type Publisher interface {
	PublishProgress(ctx context.Context, msg *pubsub.Message) error
}

// Processor 任务处理器
type Processor struct {
	jobRepo    *repository.SyncJobRepository
	syncer     Syncer
	publisher  Publisher
	maxRetries int
	now        func() time.Time
}

// NewProcessor 创建任务处理器
func NewProcessor(jobRepo *repository.SyncJobRepository, syncer Syncer, publisher Publisher) *Processor {
	return &Processor{
		jobRepo:    jobRepo,
		syncer:     syncer,
		publisher:  publisher,
		maxRetries: defaultMaxRetries,
		now:        time.Now,
	}
}

// Process 处理同步任务
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	job, err := p.jobRepo.GetByID(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	// 重复投递的消息只处理一次
	startedAt := p.now()
	claimed, err := p.jobRepo.Claim(ctx, job.ID, startedAt)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	if !claimed {
		log.Info().Int64("job_id", job.ID).Str("status", job.Status).Msg("skip sync job")
		return nil
	}

	// 定义进度推送辅助函数
	publishProgress := func(step, status, errMsg string) {
		if p.publisher == nil {
			return
		}
		err := p.publisher.PublishProgress(ctx, &pubsub.Message{
			UserID:      job.UserID,
			JobID:       job.ID,
			AdAccountID: job.AdAccountID,
			Kind:        job.Kind,
			Status:      status,
			Step:        step,
			Error:       errMsg,
		})
		if err != nil {
			log.Warn().Err(err).Int64("job_id", job.ID).Msg("failed to publish progress")
		}
	}

	// 定义失败处理函数
	handleError := func(err error) error {
		se := classifySyncError(err)
		completedAt := p.now()
		if uerr := p.jobRepo.UpdateFields(ctx, job.ID, map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": se.UserMessage,
			"completed_at":  &completedAt,
		}); uerr != nil {
			log.Error().Err(uerr).Int64("job_id", job.ID).Msg("failed to mark job failed")
		}
		metrics.SyncJobsTotal.WithLabelValues(job.Kind, model.JobStatusFailed).Inc()
		publishProgress("", model.JobStatusFailed, se.UserMessage)
		log.Error().Err(se.RawError).Int64("job_id", job.ID).Msg("sync job failed")
		return se
	}

	log.Info().Int64("job_id", job.ID).Str("kind", job.Kind).Int64("ad_account_id", job.AdAccountID).Msg("sync job started")

	n, err := syncWithRetry(ctx, p.syncer, job, func(step string) {
		publishProgress(step, model.JobStatusProcessing, "")
	}, p.maxRetries)
	if err != nil {
		return handleError(err)
	}

	completedAt := p.now()
	if err := p.jobRepo.UpdateFields(ctx, job.ID, map[string]interface{}{
		"status":       model.JobStatusCompleted,
		"items_synced": n,
		"completed_at": &completedAt,
	}); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	metrics.SyncJobsTotal.WithLabelValues(job.Kind, model.JobStatusCompleted).Inc()

	// 推送完成消息
	publishProgress(pubsub.StepDone, model.JobStatusCompleted, "")

	log.Info().
		Int64("job_id", job.ID).
		Int("items", n).
		Dur("elapsed", completedAt.Sub(startedAt)).
		Msg("sync job completed")
	return nil
}
