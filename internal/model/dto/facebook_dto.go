package dto

// AuthURLResponse Facebook 授权地址
type AuthURLResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// FacebookCallbackRequest OAuth 回调
type FacebookCallbackRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state" binding:"required"`
}

// LiveInsightQuery 实时洞察查询
type LiveInsightQuery struct {
	StartDate     string `form:"start_date" binding:"omitempty,ymd"`
	EndDate       string `form:"end_date" binding:"omitempty,ymd"`
	TimeIncrement string `form:"time_increment"`
	Level         string `form:"level" binding:"omitempty,oneof=account campaign adset ad"`
}

// AdLibrarySearchQuery 广告库搜索
type AdLibrarySearchQuery struct {
	Query     string `form:"query"`
	AdType    string `form:"ad_type"`
	Country   string `form:"country"`
	DateRange string `form:"date_range"` // min,max
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// CreateSyncJobRequest 创建同步任务
type CreateSyncJobRequest struct {
	Kind      string `json:"kind" binding:"required,oneof=campaigns insights"`
	StartDate string `json:"start_date" binding:"omitempty,ymd"`
	EndDate   string `json:"end_date" binding:"omitempty,ymd"`
}
