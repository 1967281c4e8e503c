package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
)

type AdLibraryRepository struct {
	db *gorm.DB
}

func NewAdLibraryRepository(db *gorm.DB) *AdLibraryRepository {
	return &AdLibraryRepository{db: db}
}

func (r *AdLibraryRepository) CreateCollection(ctx context.Context, collection *model.AdCollection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *AdLibraryRepository) GetCollection(ctx context.Context, id int64) (*model.AdCollection, error) {
	var collection model.AdCollection
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&collection).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// GetCollectionWithItems 收藏夹及其广告
func (r *AdLibraryRepository) GetCollectionWithItems(ctx context.Context, id int64) (*model.AdCollection, error) {
	var collection model.AdCollection
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		Preload("Items.AdLibraryItem").
		Where("id = ?", id).
		First(&collection).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

func (r *AdLibraryRepository) ListCollectionsByUser(ctx context.Context, userID int64) ([]*model.AdCollection, error) {
	collections := []*model.AdCollection{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&collections).Error
	return collections, err
}

func (r *AdLibraryRepository) UpdateCollectionFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.AdCollection{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteCollection 删除收藏夹及其条目
func (r *AdLibraryRepository) DeleteCollection(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&model.AdCollectionItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.AdCollection{}, id).Error
	})
}

func (r *AdLibraryRepository) GetItemByFacebookAdID(ctx context.Context, fbAdID string) (*model.AdLibraryItem, error) {
	var item model.AdLibraryItem
	err := r.db.WithContext(ctx).Where("facebook_ad_id = ?", fbAdID).First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SaveItem 按 facebook_ad_id 新建或更新广告库条目
func (r *AdLibraryRepository) SaveItem(ctx context.Context, item *model.AdLibraryItem) error {
	existing, err := r.GetItemByFacebookAdID(ctx, item.FacebookAdID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(item).Error
	}
	if err != nil {
		return err
	}

	item.ID = existing.ID
	item.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Model(existing).Updates(map[string]interface{}{
		"page_id":             item.PageID,
		"page_name":           item.PageName,
		"ad_snapshot_url":     item.AdSnapshotURL,
		"creative_title":      item.CreativeTitle,
		"creative_body":       item.CreativeBody,
		"delivery_start_time": item.DeliveryStartTime,
		"delivery_stop_time":  item.DeliveryStopTime,
		"raw":                 item.Raw,
	}).Error
}

func (r *AdLibraryRepository) ItemInCollection(ctx context.Context, collectionID, itemID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.AdCollectionItem{}).
		Where("collection_id = ? AND ad_library_item_id = ?", collectionID, itemID).
		Count(&count).Error
	return count > 0, err
}

func (r *AdLibraryRepository) AddItem(ctx context.Context, item *model.AdCollectionItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// RemoveItem 从收藏夹移除广告，返回是否删除了记录
func (r *AdLibraryRepository) RemoveItem(ctx context.Context, collectionID, itemID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("collection_id = ? AND ad_library_item_id = ?", collectionID, itemID).
		Delete(&model.AdCollectionItem{})
	return result.RowsAffected > 0, result.Error
}
