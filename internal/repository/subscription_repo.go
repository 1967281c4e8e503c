package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fbads_go_server/internal/model"
)

type SubscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

func (r *SubscriptionRepository) WithTx(tx *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: tx}
}

// ListActivePlans 按价格升序返回可购买的套餐
func (r *SubscriptionRepository) ListActivePlans(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	var plans []*model.SubscriptionPlan
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("price ASC, id ASC").Find(&plans).Error
	return plans, err
}

func (r *SubscriptionRepository) GetPlanByID(ctx context.Context, id int64) (*model.SubscriptionPlan, error) {
	var plan model.SubscriptionPlan
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// FirstOrCreatePlan 按名称查找或创建套餐
func (r *SubscriptionRepository) FirstOrCreatePlan(ctx context.Context, plan *model.SubscriptionPlan) error {
	return r.db.WithContext(ctx).
		Where(model.SubscriptionPlan{Name: plan.Name}).
		Attrs(model.SubscriptionPlan{
			Description:     plan.Description,
			Price:           plan.Price,
			BillingInterval: plan.BillingInterval,
			Features:        plan.Features,
			IsActive:        plan.IsActive,
		}).
		FirstOrCreate(plan).Error
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Preload("Plan").Where("id = ?", id).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ExistsByCheckoutSession(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("stripe_checkout_session_id = ?", sessionID).
		Count(&count).Error
	return count > 0, err
}

// GetByStripeIDForUpdate 按 Stripe 订阅 ID 加行锁读取，需在事务内调用
func (r *SubscriptionRepository) GetByStripeIDForUpdate(ctx context.Context, stripeID string) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_subscription_id = ?", stripeID).
		Order("id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetCurrentByUser 当前订阅：结束时间为空或在未来，取最新一条
func (r *SubscriptionRepository) GetCurrentByUser(ctx context.Context, userID int64, now time.Time) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).Preload("Plan").
		Where("user_id = ?", userID).
		Where("(end_date IS NULL OR end_date > ?)", now).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetLatestByUser 最近一条订阅，不论状态
func (r *SubscriptionRepository) GetLatestByUser(ctx context.Context, userID int64) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetActiveByUser 状态为 ACTIVE 的当前订阅
func (r *SubscriptionRepository) GetActiveByUser(ctx context.Context, userID int64, now time.Time) (*model.Subscription, error) {
	var sub model.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.SubscriptionActive).
		Where("(end_date IS NULL OR end_date > ?)", now).
		Order("created_at DESC, id DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// EndCurrentForUser 结束用户除 exceptID 以外的当前订阅，状态保持不变
func (r *SubscriptionRepository) EndCurrentForUser(ctx context.Context, userID, exceptID int64, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("user_id = ? AND id <> ?", userID, exceptID).
		Where("(end_date IS NULL OR end_date > ?)", now).
		Update("end_date", now)
	return result.RowsAffected, result.Error
}

// CountActiveExcept 统计用户其他仍在有效期内的 ACTIVE 订阅数
func (r *SubscriptionRepository) CountActiveExcept(ctx context.Context, userID, exceptID int64, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Subscription{}).
		Where("user_id = ? AND id <> ? AND status = ?", userID, exceptID, model.SubscriptionActive).
		Where("(end_date IS NULL OR end_date > ?)", now).
		Count(&count).Error
	return count, err
}

func (r *SubscriptionRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Subscription{}).Where("id = ?", id).Updates(fields).Error
}
