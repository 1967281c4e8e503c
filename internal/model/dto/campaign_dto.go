package dto

import "time"

// CampaignListQuery 广告系列列表
type CampaignListQuery struct {
	PageQuery
	AdAccountID int64  `form:"ad_account_id"`
	Status      string `form:"status" binding:"omitempty,fbstatus"`
}

// CreateCampaignRequest 创建广告系列
type CreateCampaignRequest struct {
	AdAccountID         int64      `json:"ad_account_id" binding:"required"`
	Name                string     `json:"name" binding:"required,max=255"`
	Objective           string     `json:"objective" binding:"required"`
	Status              string     `json:"status" binding:"omitempty,fbstatus"`
	SpecialAdCategories []string   `json:"special_ad_categories"`
	DailyBudget         *float64   `json:"daily_budget" binding:"omitempty,gt=0"`
	LifetimeBudget      *float64   `json:"lifetime_budget" binding:"omitempty,gt=0"`
	SpendCap            *float64   `json:"spend_cap" binding:"omitempty,gt=0"`
	StartTime           *time.Time `json:"start_time"`
	EndTime             *time.Time `json:"end_time"`
}

// UpdateCampaignRequest 更新广告系列
type UpdateCampaignRequest struct {
	Name           *string    `json:"name" binding:"omitempty,max=255"`
	Status         *string    `json:"status" binding:"omitempty,fbstatus"`
	DailyBudget    *float64   `json:"daily_budget" binding:"omitempty,gt=0"`
	LifetimeBudget *float64   `json:"lifetime_budget" binding:"omitempty,gt=0"`
	SpendCap       *float64   `json:"spend_cap" binding:"omitempty,gt=0"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
}

// UpdateAdAccountRequest 更新广告账户
type UpdateAdAccountRequest struct {
	Name string `json:"name" binding:"required,max=200"`
}
