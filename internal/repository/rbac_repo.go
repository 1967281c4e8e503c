package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fbads_go_server/internal/model"
)

type RBACRepository struct {
	db *gorm.DB
}

func NewRBACRepository(db *gorm.DB) *RBACRepository {
	return &RBACRepository{db: db}
}

func (r *RBACRepository) WithTx(tx *gorm.DB) *RBACRepository {
	return &RBACRepository{db: tx}
}

// PermissionNamesByUser 用户所有角色的权限名（去重）
func (r *RBACRepository) PermissionNamesByUser(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("permissions").
		Distinct("permissions.name").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("permissions.name", &names).Error
	return names, err
}

// RoleNamesByUser 用户的角色名
func (r *RBACRepository) RoleNamesByUser(ctx context.Context, userID int64) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name ASC").
		Pluck("roles.name", &names).Error
	return names, err
}

func (r *RBACRepository) GetRoleByName(ctx context.Context, name string) (*model.Role, error) {
	var role model.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles 所有角色（含权限）
func (r *RBACRepository) ListRoles(ctx context.Context) ([]*model.Role, error) {
	var roles []*model.Role
	err := r.db.WithContext(ctx).Preload("Permissions").Order("id ASC").Find(&roles).Error
	return roles, err
}

func (r *RBACRepository) ListPermissions(ctx context.Context) ([]*model.Permission, error) {
	var perms []*model.Permission
	err := r.db.WithContext(ctx).Order("resource ASC, action ASC").Find(&perms).Error
	return perms, err
}

// CountRolesByIDs 统计存在的角色数，用于校验请求中的 role_ids
func (r *RBACRepository) CountRolesByIDs(ctx context.Context, ids []int64) (int64, error) {
	var count int64
	if len(ids) == 0 {
		return 0, nil
	}
	err := r.db.WithContext(ctx).Model(&model.Role{}).Where("id IN ?", ids).Count(&count).Error
	return count, err
}

func (r *RBACRepository) HasRole(ctx context.Context, userID, roleID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&count).Error
	return count > 0, err
}

// GrantRole 授予角色，已存在时不做任何事
func (r *RBACRepository) GrantRole(ctx context.Context, userID, roleID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.UserRole{UserID: userID, RoleID: roleID}).Error
}

func (r *RBACRepository) RevokeRole(ctx context.Context, userID, roleID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&model.UserRole{}).Error
}

func (r *RBACRepository) DeleteUserRoles(ctx context.Context, userID int64) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.UserRole{}).Error
}

// ReplaceUserRoles 先删后插，调用方负责事务
func (r *RBACRepository) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	if err := r.DeleteUserRoles(ctx, userID); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return nil
	}

	grants := make([]model.UserRole, 0, len(roleIDs))
	seen := make(map[int64]bool, len(roleIDs))
	for _, id := range roleIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		grants = append(grants, model.UserRole{UserID: userID, RoleID: id})
	}
	return r.db.WithContext(ctx).Create(&grants).Error
}

// FirstOrCreateRole 按名称查找或创建角色
func (r *RBACRepository) FirstOrCreateRole(ctx context.Context, role *model.Role) error {
	return r.db.WithContext(ctx).
		Where(model.Role{Name: role.Name}).
		Attrs(model.Role{Description: role.Description, IsSystem: role.IsSystem}).
		FirstOrCreate(role).Error
}

// FirstOrCreatePermission 按名称查找或创建权限
func (r *RBACRepository) FirstOrCreatePermission(ctx context.Context, perm *model.Permission) error {
	return r.db.WithContext(ctx).
		Where(model.Permission{Name: perm.Name}).
		Attrs(model.Permission{Resource: perm.Resource, Action: perm.Action, Description: perm.Description}).
		FirstOrCreate(perm).Error
}

// EnsureRolePermission 绑定角色与权限
func (r *RBACRepository) EnsureRolePermission(ctx context.Context, roleID, permissionID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.RolePermission{RoleID: roleID, PermissionID: permissionID}).Error
}
