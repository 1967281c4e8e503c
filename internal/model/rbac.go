package model

import (
	"time"
)

// 内置角色名
const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleAnalyst  = "Analyst"
	RoleCreator  = "Creator"
	RoleClient   = "Client"
	RolePaidUser = "PAID_USER"
	RoleFreeUser = "FREE_USER"
)

type Role struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	IsSystem    bool      `gorm:"default:false" json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Permissions []Permission `gorm:"many2many:role_permissions;joinForeignKey:RoleID;joinReferences:PermissionID" json:"permissions,omitempty"`
}

func (Role) TableName() string {
	return "roles"
}

type Permission struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"` // resource:action
	Resource    string    `gorm:"size:50;not null" json:"resource"`
	Action      string    `gorm:"size:50;not null" json:"action"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Permission) TableName() string {
	return "permissions"
}

type UserRole struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	RoleID    int64     `gorm:"primaryKey;autoIncrement:false;index" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}

type RolePermission struct {
	RoleID       int64     `gorm:"primaryKey;autoIncrement:false" json:"role_id"`
	PermissionID int64     `gorm:"primaryKey;autoIncrement:false;index" json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func (RolePermission) TableName() string {
	return "role_permissions"
}
