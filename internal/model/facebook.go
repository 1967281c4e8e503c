package model

import (
	"time"
)

type FacebookAccount struct {
	ID                int64      `gorm:"primaryKey" json:"id"`
	UserID            int64      `gorm:"not null;uniqueIndex:idx_fb_user" json:"user_id"`
	FacebookUserID    string     `gorm:"size:64;not null;uniqueIndex:idx_fb_user" json:"facebook_user_id"`
	AccessToken       string     `gorm:"type:text" json:"-"`
	TokenExpiresAt    *time.Time `gorm:"index" json:"token_expires_at,omitempty"`
	Name              string     `gorm:"size:200" json:"name"`
	Email             string     `gorm:"size:200" json:"email"`
	ProfilePictureURL string     `gorm:"size:1000" json:"profile_picture_url"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	AdAccounts []AdAccount `gorm:"foreignKey:FacebookAccountID;constraint:OnDelete:CASCADE" json:"ad_accounts,omitempty"`
}

func (FacebookAccount) TableName() string {
	return "facebook_accounts"
}

// TokenValid 令牌存在且未过期
func (a *FacebookAccount) TokenValid(now time.Time) bool {
	if a.AccessToken == "" {
		return false
	}
	return a.TokenExpiresAt == nil || a.TokenExpiresAt.After(now)
}

type AdAccount struct {
	ID                  int64      `gorm:"primaryKey" json:"id"`
	FacebookAccountID   int64      `gorm:"not null;uniqueIndex:idx_fb_ad_account" json:"facebook_account_id"`
	FacebookAdAccountID string     `gorm:"size:64;not null;uniqueIndex:idx_fb_ad_account" json:"facebook_ad_account_id"` // act_xxx
	Name                string     `gorm:"size:200" json:"name"`
	Currency            string     `gorm:"size:10" json:"currency"`
	Timezone            string     `gorm:"size:64" json:"timezone"`
	BusinessName        string     `gorm:"size:200" json:"business_name"`
	BusinessID          string     `gorm:"size:64" json:"business_id"`
	AccountStatus       int        `json:"account_status"`
	LastSyncedAt        *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	FacebookAccount *FacebookAccount `gorm:"foreignKey:FacebookAccountID" json:"facebook_account,omitempty"`
}

func (AdAccount) TableName() string {
	return "ad_accounts"
}

// GraphID 返回不带 act_ 前缀的账户 ID
func (a *AdAccount) GraphID() string {
	if len(a.FacebookAdAccountID) > 4 && a.FacebookAdAccountID[:4] == "act_" {
		return a.FacebookAdAccountID[4:]
	}
	return a.FacebookAdAccountID
}

type AdAccountUser struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	AdAccountID    int64     `gorm:"not null;index" json:"ad_account_id"`
	FacebookUserID string    `gorm:"size:64" json:"facebook_user_id"`
	Name           string    `gorm:"size:200" json:"name"`
	Role           string    `gorm:"size:50" json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

func (AdAccountUser) TableName() string {
	return "ad_account_users"
}
