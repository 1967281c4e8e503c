package model

import (
	"time"
)

// 同步任务类型
const (
	SyncKindAdAccounts = "ad_accounts"
	SyncKindCampaigns  = "campaigns"
	SyncKindInsights   = "insights"
)

// 同步任务状态
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type SyncJob struct {
	ID           int64      `gorm:"primaryKey" json:"id"`
	UserID       int64      `gorm:"not null;index" json:"user_id"`
	AdAccountID  int64      `gorm:"not null;index" json:"ad_account_id"`
	Kind         string     `gorm:"size:20;not null" json:"kind"`
	Status       string     `gorm:"size:20;default:pending;index" json:"status"`
	Since        *time.Time `gorm:"type:date" json:"since,omitempty"`
	Until        *time.Time `gorm:"type:date" json:"until,omitempty"`
	ItemsSynced  int        `json:"items_synced"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (SyncJob) TableName() string {
	return "sync_jobs"
}
