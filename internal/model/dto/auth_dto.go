package dto

import "time"

// RegisterRequest 注册请求
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	FirstName   string `json:"first_name" binding:"max=100"`
	LastName    string `json:"last_name" binding:"max=100"`
	CompanyName string `json:"company_name" binding:"max=200"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest 刷新令牌
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest 退出登录
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ForgotPasswordRequest 申请重置密码
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest 使用重置令牌设置新密码
type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// ChangePasswordRequest 修改密码
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
}

// UpdateProfileRequest 更新个人资料
type UpdateProfileRequest struct {
	FirstName       *string `json:"first_name" binding:"omitempty,max=100"`
	LastName        *string `json:"last_name" binding:"omitempty,max=100"`
	CompanyName     *string `json:"company_name" binding:"omitempty,max=200"`
	JobTitle        *string `json:"job_title" binding:"omitempty,max=100"`
	Phone           *string `json:"phone" binding:"omitempty,max=50"`
	ProfileImageURL *string `json:"profile_image_url" binding:"omitempty,url,max=500"`
}

// AuthResponse 登录/注册/刷新的返回
type AuthResponse struct {
	User         *UserInfo `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"` // 秒
}

// UserInfo 用户信息
type UserInfo struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	CompanyName     string     `json:"company_name"`
	JobTitle        string     `json:"job_title"`
	Phone           string     `json:"phone"`
	ProfileImageURL string     `json:"profile_image_url"`
	Status          string     `json:"status"`
	EmailVerified   bool       `json:"email_verified"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	Roles           []string   `json:"roles"`
	Permissions     []string   `json:"permissions,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
