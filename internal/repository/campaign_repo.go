package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
)

type CampaignRepository struct {
	db *gorm.DB
}

func NewCampaignRepository(db *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

func (r *CampaignRepository) WithTx(tx *gorm.DB) *CampaignRepository {
	return &CampaignRepository{db: tx}
}

func (r *CampaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

// List 按广告账户过滤的分页列表
func (r *CampaignRepository) List(ctx context.Context, adAccountIDs []int64, status string, offset, limit int) ([]*model.Campaign, int64, error) {
	var campaigns []*model.Campaign
	var total int64

	if len(adAccountIDs) == 0 {
		return []*model.Campaign{}, 0, nil
	}

	query := r.db.WithContext(ctx).Model(&model.Campaign{}).Where("ad_account_id IN ?", adAccountIDs)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&campaigns).Error
	if err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// GetForUser 只返回归属该用户的广告系列（含广告账户）
func (r *CampaignRepository) GetForUser(ctx context.Context, id, userID int64) (*model.Campaign, error) {
	var campaign model.Campaign
	err := r.db.WithContext(ctx).
		Preload("AdAccount").
		Joins("JOIN ad_accounts ON ad_accounts.id = campaigns.ad_account_id").
		Joins("JOIN facebook_accounts ON facebook_accounts.id = ad_accounts.facebook_account_id").
		Where("campaigns.id = ? AND facebook_accounts.user_id = ?", id, userID).
		First(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *CampaignRepository) GetByFacebookID(ctx context.Context, fbID string) (*model.Campaign, error) {
	var campaign model.Campaign
	err := r.db.WithContext(ctx).Where("facebook_campaign_id = ?", fbID).First(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *CampaignRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Campaign{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 删除广告系列及其广告组
func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("campaign_id = ?", id).Delete(&model.AdSet{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Campaign{}, id).Error
	})
}

// Save 按 facebook_campaign_id 新建或更新，用于同步
func (r *CampaignRepository) Save(ctx context.Context, campaign *model.Campaign) error {
	existing, err := r.GetByFacebookID(ctx, campaign.FacebookCampaignID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.Create(ctx, campaign)
	}
	if err != nil {
		return err
	}

	campaign.ID = existing.ID
	campaign.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Model(existing).Updates(map[string]interface{}{
		"ad_account_id":         campaign.AdAccountID,
		"name":                  campaign.Name,
		"objective":             campaign.Objective,
		"status":                campaign.Status,
		"buying_type":           campaign.BuyingType,
		"special_ad_categories": campaign.SpecialAdCategories,
		"daily_budget":          campaign.DailyBudget,
		"lifetime_budget":       campaign.LifetimeBudget,
		"spend_cap":             campaign.SpendCap,
		"start_time":            campaign.StartTime,
		"end_time":              campaign.EndTime,
	}).Error
}

func (r *CampaignRepository) ListAdSets(ctx context.Context, campaignID int64) ([]*model.AdSet, error) {
	adSets := []*model.AdSet{}
	err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("created_at DESC, id DESC").Find(&adSets).Error
	return adSets, err
}

// SaveAdSet 按 facebook_ad_set_id 新建或更新
func (r *CampaignRepository) SaveAdSet(ctx context.Context, adSet *model.AdSet) error {
	var existing model.AdSet
	err := r.db.WithContext(ctx).Where("facebook_ad_set_id = ?", adSet.FacebookAdSetID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(adSet).Error
	}
	if err != nil {
		return err
	}

	adSet.ID = existing.ID
	adSet.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"campaign_id":       adSet.CampaignID,
		"name":              adSet.Name,
		"status":            adSet.Status,
		"optimization_goal": adSet.OptimizationGoal,
		"billing_event":     adSet.BillingEvent,
		"daily_budget":      adSet.DailyBudget,
		"lifetime_budget":   adSet.LifetimeBudget,
	}).Error
}
