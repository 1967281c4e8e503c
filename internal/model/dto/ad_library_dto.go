package dto

// CreateCollectionRequest 创建收藏夹
type CreateCollectionRequest struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
	IsPublic    bool   `json:"is_public"`
}

// UpdateCollectionRequest 更新收藏夹
type UpdateCollectionRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
	IsPublic    *bool   `json:"is_public"`
}

// AddCollectionAdRequest 向收藏夹添加广告
type AddCollectionAdRequest struct {
	FacebookAdID string `json:"facebook_ad_id" binding:"required,max=64"`
	Notes        string `json:"notes" binding:"max=2000"`
}
