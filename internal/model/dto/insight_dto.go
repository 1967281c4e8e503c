package dto

// InsightQuery 洞察数据过滤条件
type InsightQuery struct {
	AdAccountID int64  `form:"ad_account_id" json:"ad_account_id"`
	CampaignID  string `form:"campaign_id" json:"campaign_id"`
	AdSetID     string `form:"ad_set_id" json:"ad_set_id"`
	AdID        string `form:"ad_id" json:"ad_id"`
	ObjectType  string `form:"object_type" json:"object_type" binding:"omitempty,oneof=ACCOUNT CAMPAIGN ADSET AD"`
	StartDate   string `form:"start_date" json:"start_date" binding:"omitempty,ymd"`
	EndDate     string `form:"end_date" json:"end_date" binding:"omitempty,ymd"`
}

// BreakdownQuery 实时细分查询
type BreakdownQuery struct {
	AdAccountID int64  `form:"ad_account_id"`
	CampaignID  int64  `form:"campaign_id"`
	StartDate   string `form:"start_date" binding:"omitempty,ymd"`
	EndDate     string `form:"end_date" binding:"omitempty,ymd"`
}

// PerformanceSummary 汇总指标
type PerformanceSummary struct {
	Impressions       int64   `json:"impressions"`
	Clicks            int64   `json:"clicks"`
	Spend             float64 `json:"spend"`
	Conversions       int64   `json:"conversions"`
	Reach             int64   `json:"reach"`
	CTR               float64 `json:"ctr"` // 百分比
	CPC               float64 `json:"cpc"`
	CostPerConversion float64 `json:"cost_per_conversion"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date"`
}

// BreakdownRow 细分维度的一行
type BreakdownRow struct {
	Dimensions  map[string]string `json:"dimensions"`
	Impressions int64             `json:"impressions"`
	Clicks      int64             `json:"clicks"`
	Spend       float64           `json:"spend"`
	Reach       int64             `json:"reach"`
}

// ExportResponse 导出结果
type ExportResponse struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Rows int    `json:"rows"`
}
