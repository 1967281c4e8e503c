package model

import (
	"time"
)

type AdLibraryItem struct {
	ID                int64      `gorm:"primaryKey" json:"id"`
	FacebookAdID      string     `gorm:"size:64;uniqueIndex;not null" json:"facebook_ad_id"`
	PageID            string     `gorm:"size:64" json:"page_id"`
	PageName          string     `gorm:"size:255" json:"page_name"`
	AdSnapshotURL     string     `gorm:"size:1000" json:"ad_snapshot_url"`
	CreativeTitle     string     `gorm:"size:500" json:"creative_title"`
	CreativeBody      string     `gorm:"type:text" json:"creative_body"`
	DeliveryStartTime *time.Time `json:"delivery_start_time,omitempty"`
	DeliveryStopTime  *time.Time `json:"delivery_stop_time,omitempty"`
	Raw               string     `gorm:"type:text" json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (AdLibraryItem) TableName() string {
	return "ad_library_items"
}

type AdCollection struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	UserID      int64     `gorm:"not null;index" json:"user_id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsPublic    bool      `gorm:"default:false;index" json:"is_public"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Items []AdCollectionItem `gorm:"foreignKey:CollectionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

func (AdCollection) TableName() string {
	return "ad_collections"
}

type AdCollectionItem struct {
	ID              int64     `gorm:"primaryKey" json:"id"`
	CollectionID    int64     `gorm:"not null;uniqueIndex:idx_collection_item" json:"collection_id"`
	AdLibraryItemID int64     `gorm:"not null;uniqueIndex:idx_collection_item" json:"ad_library_item_id"`
	Notes           string    `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time `json:"created_at"`

	AdLibraryItem *AdLibraryItem `gorm:"foreignKey:AdLibraryItemID" json:"ad_library_item,omitempty"`
}

func (AdCollectionItem) TableName() string {
	return "ad_collection_items"
}
