package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
)

type FacebookRepository struct {
	db *gorm.DB
}

func NewFacebookRepository(db *gorm.DB) *FacebookRepository {
	return &FacebookRepository{db: db}
}

func (r *FacebookRepository) WithTx(tx *gorm.DB) *FacebookRepository {
	return &FacebookRepository{db: tx}
}

// SaveAccount 按 (user_id, facebook_user_id) 新建或更新账户，返回后 account.ID 已填充
func (r *FacebookRepository) SaveAccount(ctx context.Context, account *model.FacebookAccount) error {
	var existing model.FacebookAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND facebook_user_id = ?", account.UserID, account.FacebookUserID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(account).Error
	}
	if err != nil {
		return err
	}

	account.ID = existing.ID
	account.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"access_token":        account.AccessToken,
		"token_expires_at":    account.TokenExpiresAt,
		"name":                account.Name,
		"email":               account.Email,
		"profile_picture_url": account.ProfilePictureURL,
	}).Error
}

// ListAccountsByUser 用户的 Facebook 账户及其广告账户
func (r *FacebookRepository) ListAccountsByUser(ctx context.Context, userID int64) ([]*model.FacebookAccount, error) {
	var accounts []*model.FacebookAccount
	err := r.db.WithContext(ctx).
		Preload("AdAccounts", func(db *gorm.DB) *gorm.DB { return db.Order("name ASC") }).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&accounts).Error
	return accounts, err
}

// GetAccountForUser 只返回属于该用户的账户
func (r *FacebookRepository) GetAccountForUser(ctx context.Context, id, userID int64) (*model.FacebookAccount, error) {
	var account model.FacebookAccount
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetTokenAccount 用户最近更新且令牌未过期的账户
func (r *FacebookRepository) GetTokenAccount(ctx context.Context, userID int64, now time.Time) (*model.FacebookAccount, error) {
	var account model.FacebookAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND access_token <> ''", userID).
		Where("(token_expires_at IS NULL OR token_expires_at > ?)", now).
		Order("updated_at DESC, id DESC").
		First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// DeleteAccount 删除账户及其广告账户，调用方负责事务
func (r *FacebookRepository) DeleteAccount(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Where("facebook_account_id = ?", id).Delete(&model.AdAccount{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&model.FacebookAccount{}, id).Error
}

// SaveAdAccount 按 (facebook_account_id, facebook_ad_account_id) 新建或更新
func (r *FacebookRepository) SaveAdAccount(ctx context.Context, adAccount *model.AdAccount) error {
	var existing model.AdAccount
	err := r.db.WithContext(ctx).
		Where("facebook_account_id = ? AND facebook_ad_account_id = ?", adAccount.FacebookAccountID, adAccount.FacebookAdAccountID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(adAccount).Error
	}
	if err != nil {
		return err
	}

	adAccount.ID = existing.ID
	adAccount.CreatedAt = existing.CreatedAt
	return r.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"name":           adAccount.Name,
		"currency":       adAccount.Currency,
		"timezone":       adAccount.Timezone,
		"business_name":  adAccount.BusinessName,
		"business_id":    adAccount.BusinessID,
		"account_status": adAccount.AccountStatus,
		"last_synced_at": adAccount.LastSyncedAt,
	}).Error
}

// ListAdAccountsByUser 经由 facebook_accounts.user_id 做归属过滤
func (r *FacebookRepository) ListAdAccountsByUser(ctx context.Context, userID int64) ([]*model.AdAccount, error) {
	adAccounts := []*model.AdAccount{}
	err := r.db.WithContext(ctx).
		Joins("JOIN facebook_accounts ON facebook_accounts.id = ad_accounts.facebook_account_id").
		Where("facebook_accounts.user_id = ?", userID).
		Order("ad_accounts.name ASC, ad_accounts.id ASC").
		Find(&adAccounts).Error
	return adAccounts, err
}

// AdAccountIDsByUser 用户拥有的广告账户 ID
func (r *FacebookRepository) AdAccountIDsByUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.AdAccount{}).
		Joins("JOIN facebook_accounts ON facebook_accounts.id = ad_accounts.facebook_account_id").
		Where("facebook_accounts.user_id = ?", userID).
		Pluck("ad_accounts.id", &ids).Error
	return ids, err
}

// GetAdAccountForUser 广告账户（含所属 Facebook 账户），不属于该用户时返回 ErrRecordNotFound
func (r *FacebookRepository) GetAdAccountForUser(ctx context.Context, id, userID int64) (*model.AdAccount, error) {
	var adAccount model.AdAccount
	err := r.db.WithContext(ctx).
		Preload("FacebookAccount").
		Joins("JOIN facebook_accounts ON facebook_accounts.id = ad_accounts.facebook_account_id").
		Where("ad_accounts.id = ? AND facebook_accounts.user_id = ?", id, userID).
		First(&adAccount).Error
	if err != nil {
		return nil, err
	}
	return &adAccount, nil
}

// GetAdAccount 不做归属校验，供后台任务使用
func (r *FacebookRepository) GetAdAccount(ctx context.Context, id int64) (*model.AdAccount, error) {
	var adAccount model.AdAccount
	err := r.db.WithContext(ctx).Preload("FacebookAccount").Where("id = ?", id).First(&adAccount).Error
	if err != nil {
		return nil, err
	}
	return &adAccount, nil
}

func (r *FacebookRepository) UpdateAdAccountFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.AdAccount{}).Where("id = ?", id).Updates(fields).Error
}

// ListStaleAdAccounts 从未同步或上次同步早于 before 的广告账户
func (r *FacebookRepository) ListStaleAdAccounts(ctx context.Context, before time.Time, limit int) ([]*model.AdAccount, error) {
	adAccounts := []*model.AdAccount{}
	err := r.db.WithContext(ctx).
		Preload("FacebookAccount").
		Where("last_synced_at IS NULL OR last_synced_at < ?", before).
		Order("id ASC").
		Limit(limit).
		Find(&adAccounts).Error
	return adAccounts, err
}

func (r *FacebookRepository) ListAdAccountUsers(ctx context.Context, adAccountID int64) ([]*model.AdAccountUser, error) {
	users := []*model.AdAccountUser{}
	err := r.db.WithContext(ctx).Where("ad_account_id = ?", adAccountID).Order("id ASC").Find(&users).Error
	return users, err
}

// ReplaceAdAccountUsers 覆盖广告账户的成员列表，调用方负责事务
func (r *FacebookRepository) ReplaceAdAccountUsers(ctx context.Context, adAccountID int64, users []*model.AdAccountUser) error {
	if err := r.db.WithContext(ctx).Where("ad_account_id = ?", adAccountID).Delete(&model.AdAccountUser{}).Error; err != nil {
		return err
	}
	if len(users) == 0 {
		return nil
	}
	for _, u := range users {
		u.AdAccountID = adAccountID
	}
	return r.db.WithContext(ctx).Create(&users).Error
}
