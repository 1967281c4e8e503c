package model

import (
	"time"
)

const (
	CampaignStatusActive   = "ACTIVE"
	CampaignStatusPaused   = "PAUSED"
	CampaignStatusArchived = "ARCHIVED"
	CampaignStatusDeleted  = "DELETED"

	BuyingTypeAuction = "AUCTION"
)

type Campaign struct {
	ID                  int64       `gorm:"primaryKey" json:"id"`
	AdAccountID         int64       `gorm:"not null;index" json:"ad_account_id"`
	FacebookCampaignID  string      `gorm:"size:64;uniqueIndex;not null" json:"facebook_campaign_id"`
	Name                string      `gorm:"size:255;not null" json:"name"`
	Objective           string      `gorm:"size:64" json:"objective"`
	Status              string      `gorm:"size:20;default:PAUSED;index" json:"status"`
	BuyingType          string      `gorm:"size:20;default:AUCTION" json:"buying_type"`
	SpecialAdCategories StringArray `gorm:"type:json" json:"special_ad_categories"`
	DailyBudget         *float64    `gorm:"type:decimal(12,2)" json:"daily_budget,omitempty"`
	LifetimeBudget      *float64    `gorm:"type:decimal(12,2)" json:"lifetime_budget,omitempty"`
	SpendCap            *float64    `gorm:"type:decimal(12,2)" json:"spend_cap,omitempty"`
	StartTime           *time.Time  `json:"start_time,omitempty"`
	EndTime             *time.Time  `json:"end_time,omitempty"`
	CreatedAt           time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`

	AdAccount *AdAccount `gorm:"foreignKey:AdAccountID" json:"ad_account,omitempty"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

type AdSet struct {
	ID               int64     `gorm:"primaryKey" json:"id"`
	CampaignID       int64     `gorm:"not null;index" json:"campaign_id"`
	FacebookAdSetID  string    `gorm:"size:64;uniqueIndex;not null" json:"facebook_ad_set_id"`
	Name             string    `gorm:"size:255" json:"name"`
	Status           string    `gorm:"size:20" json:"status"`
	OptimizationGoal string    `gorm:"size:64" json:"optimization_goal"`
	BillingEvent     string    `gorm:"size:64" json:"billing_event"`
	DailyBudget      *float64  `gorm:"type:decimal(12,2)" json:"daily_budget,omitempty"`
	LifetimeBudget   *float64  `gorm:"type:decimal(12,2)" json:"lifetime_budget,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (AdSet) TableName() string {
	return "ad_sets"
}
