package dto

import (
	"github.com/qs3c/fbads_go_server/internal/model"
)

// PageQuery 通用分页参数
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Normalize 填充默认分页值
func (q *PageQuery) Normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
}

// Offset 返回 SQL 偏移量
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// CreateUserRequest 管理员创建用户
type CreateUserRequest struct {
	Email       string  `json:"email" binding:"required,email"`
	Password    string  `json:"password" binding:"required,min=8,max=72"`
	FirstName   string  `json:"first_name" binding:"max=100"`
	LastName    string  `json:"last_name" binding:"max=100"`
	CompanyName string  `json:"company_name" binding:"max=200"`
	JobTitle    string  `json:"job_title" binding:"max=100"`
	Phone       string  `json:"phone" binding:"max=50"`
	RoleIDs     []int64 `json:"role_ids"`
}

// UpdateUserRequest 更新用户，Email/Status/RoleIDs 仅管理员可改
type UpdateUserRequest struct {
	UpdateProfileRequest
	Email   *string  `json:"email" binding:"omitempty,email"`
	Status  *string  `json:"status" binding:"omitempty,oneof=active inactive"`
	RoleIDs *[]int64 `json:"role_ids"`
}

// AdminResetPasswordRequest 管理员重置密码
type AdminResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// UserListItem 用户列表项
type UserListItem struct {
	UserInfo
}

// UserDetail 用户详情
type UserDetail struct {
	UserInfo
	FacebookAccounts []model.FacebookAccount `json:"facebook_accounts"`
	Subscription     *model.Subscription     `json:"subscription"`
}
