package model

import (
	"time"
)

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

type User struct {
	ID                   int64      `gorm:"primaryKey" json:"id"`
	Email                string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	PasswordHash         string     `gorm:"size:255;not null" json:"-"`
	FirstName            string     `gorm:"size:100" json:"first_name"`
	LastName             string     `gorm:"size:100" json:"last_name"`
	CompanyName          string     `gorm:"size:200" json:"company_name"`
	JobTitle             string     `gorm:"size:100" json:"job_title"`
	Phone                string     `gorm:"size:50" json:"phone"`
	ProfileImageURL      string     `gorm:"size:500" json:"profile_image_url"`
	Status               string     `gorm:"size:20;default:active;index" json:"status"` // active, inactive
	EmailVerified        bool       `gorm:"default:false" json:"email_verified"`
	LastLoginAt          *time.Time `json:"last_login_at,omitempty"`
	PasswordResetToken   *string    `gorm:"size:500" json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	Roles []Role `gorm:"many2many:user_roles;joinForeignKey:UserID;joinReferences:RoleID" json:"roles,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) IsActive() bool {
	return u.Status == UserStatusActive
}

// Session 刷新令牌会话
type Session struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	UserID       int64     `gorm:"not null;index" json:"user_id"`
	RefreshToken string    `gorm:"size:512;uniqueIndex;not null" json:"-"`
	UserAgent    string    `gorm:"size:500" json:"user_agent"`
	IPAddress    string    `gorm:"size:64" json:"ip_address"`
	ExpiresAt    time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Session) TableName() string {
	return "sessions"
}
