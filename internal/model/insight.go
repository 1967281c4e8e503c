package model

import (
	"time"
)

// 洞察数据所属的对象层级
const (
	ObjectAccount  = "ACCOUNT"
	ObjectCampaign = "CAMPAIGN"
	ObjectAdSet    = "ADSET"
	ObjectAd       = "AD"
)

type Insight struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	AdAccountID int64     `gorm:"not null;index" json:"ad_account_id"`
	ObjectType  string    `gorm:"size:20;not null;uniqueIndex:idx_insight_object_date" json:"object_type"`
	ObjectID    string    `gorm:"size:64;not null;uniqueIndex:idx_insight_object_date" json:"object_id"`
	Date        time.Time `gorm:"type:date;not null;uniqueIndex:idx_insight_object_date;index" json:"date"`
	Impressions int64     `json:"impressions"`
	Clicks      int64     `json:"clicks"`
	Reach       int64     `json:"reach"`
	Spend       float64   `gorm:"type:decimal(14,2)" json:"spend"`
	CPC         float64   `gorm:"type:decimal(10,4)" json:"cpc"`
	CTR         float64   `gorm:"type:decimal(10,4)" json:"ctr"`
	Frequency   float64   `gorm:"type:decimal(10,4)" json:"frequency"`
	Conversions int64     `json:"conversions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Insight) TableName() string {
	return "insights"
}

// ValidObjectType 校验对象层级
func ValidObjectType(t string) bool {
	switch t {
	case ObjectAccount, ObjectCampaign, ObjectAdSet, ObjectAd:
		return true
	}
	return false
}
