package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	var session model.Session
	err := r.db.WithContext(ctx).Where("refresh_token = ?", token).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeleteByToken 删除会话，返回是否删除了记录
func (r *SessionRepository) DeleteByToken(ctx context.Context, token string) (bool, error) {
	result := r.db.WithContext(ctx).Where("refresh_token = ?", token).Delete(&model.Session{})
	return result.RowsAffected > 0, result.Error
}

func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Session{}).Error
}

// DeleteExpired 清理过期会话
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.Session{})
	return result.RowsAffected, result.Error
}

func (r *SessionRepository) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Session{}).Where("expires_at < ?", now).Count(&count).Error
	return count, err
}
