package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
)

type SyncJobRepository struct {
	db *gorm.DB
}

func NewSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

func (r *SyncJobRepository) Create(ctx context.Context, job *model.SyncJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *SyncJobRepository) GetByID(ctx context.Context, id int64) (*model.SyncJob, error) {
	var job model.SyncJob
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *SyncJobRepository) GetForUser(ctx context.Context, id, userID int64) (*model.SyncJob, error) {
	var job model.SyncJob
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *SyncJobRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.SyncJob{}).Where("id = ?", id).Updates(fields).Error
}

func (r *SyncJobRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	return r.db.WithContext(ctx).Model(&model.SyncJob{}).Where("id = ?", id).Update("status", status).Error
}

// Claim 仅当任务仍为 pending 时置为 processing，返回是否抢占成功
func (r *SyncJobRepository) Claim(ctx context.Context, id int64, startedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.SyncJob{}).
		Where("id = ? AND status = ?", id, model.JobStatusPending).
		Updates(map[string]interface{}{
			"status":     model.JobStatusProcessing,
			"started_at": &startedAt,
		})
	return result.RowsAffected == 1, result.Error
}

// HasOpenJob 广告账户是否已有同类型的待处理或处理中任务
func (r *SyncJobRepository) HasOpenJob(ctx context.Context, adAccountID int64, kind string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SyncJob{}).
		Where("ad_account_id = ? AND kind = ?", adAccountID, kind).
		Where("status IN ?", []string{model.JobStatusPending, model.JobStatusProcessing}).
		Count(&count).Error
	return count > 0, err
}

// ListStuck 停留在某状态过久的任务：pending 按 created_at，processing 按 started_at
func (r *SyncJobRepository) ListStuck(ctx context.Context, status string, before time.Time, limit int) ([]*model.SyncJob, error) {
	column := "created_at"
	if status == model.JobStatusProcessing {
		column = "started_at"
	}
	var jobs []*model.SyncJob
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Where(column+" < ?", before).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
