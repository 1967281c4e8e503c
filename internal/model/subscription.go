package model

import (
	"time"
)

// 订阅状态
const (
	SubscriptionActive        = "ACTIVE"
	SubscriptionInactive      = "INACTIVE"
	SubscriptionCanceled      = "CANCELED"
	SubscriptionPaymentFailed = "PAYMENT_FAILED"
)

// 计费周期
const (
	IntervalMonth = "MONTH"
	IntervalYear  = "YEAR"
)

type SubscriptionPlan struct {
	ID              int64       `gorm:"primaryKey" json:"id"`
	Name            string      `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description     string      `gorm:"type:text" json:"description"`
	Price           float64     `gorm:"type:decimal(10,2);not null" json:"price"`
	BillingInterval string      `gorm:"size:10;not null;default:MONTH" json:"billing_interval"` // MONTH, YEAR
	Features        StringArray `gorm:"type:json" json:"features"`
	IsActive        bool        `gorm:"default:true;index" json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

type Subscription struct {
	ID                      int64      `gorm:"primaryKey" json:"id"`
	UserID                  int64      `gorm:"not null;index" json:"user_id"`
	PlanID                  int64      `gorm:"not null;index" json:"plan_id"`
	StripeSubscriptionID    string     `gorm:"size:100;index" json:"stripe_subscription_id,omitempty"`
	StripeCustomerID        string     `gorm:"size:100" json:"-"`
	StripeCheckoutSessionID *string    `gorm:"size:200;uniqueIndex" json:"-"`
	Status                  string     `gorm:"size:20;default:ACTIVE;index" json:"status"`
	StartDate               time.Time  `gorm:"not null" json:"start_date"`
	EndDate                 *time.Time `gorm:"index" json:"end_date"`
	LastEventAt             *time.Time `json:"-"` // 最近一次已应用的 webhook 事件时间
	CreatedAt               time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`

	Plan *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// IsCurrent 结束时间为空或在未来
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.EndDate == nil || s.EndDate.After(now)
}
