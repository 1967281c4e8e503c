package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// 权限名 resource:action
const (
	PermUsersRead          = "users:read"
	PermUsersWrite         = "users:write"
	PermUsersDelete        = "users:delete"
	PermAdAccountsRead     = "adAccounts:read"
	PermAdAccountsWrite    = "adAccounts:write"
	PermAdAccountsDelete   = "adAccounts:delete"
	PermCampaignsRead      = "campaigns:read"
	PermCampaignsWrite     = "campaigns:write"
	PermCampaignsDelete    = "campaigns:delete"
	PermAnalyticsRead      = "analytics:read"
	PermAnalyticsExport    = "analytics:export"
	PermAdLibraryRead      = "adLibrary:read"
	PermAdLibraryWrite     = "adLibrary:write"
	PermBillingRead        = "billing:read"
	PermBillingWrite       = "billing:write"
	PermRolesRead          = "roles:read"
	PermSubscriptionsWrite = "subscriptions:write"
)

// PermissionSet 去重后的权限集合
type PermissionSet map[string]struct{}

func NewPermissionSet(names ...string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Slice 排序后的权限列表
func (s PermissionSet) Slice() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasPermission 纯函数权限判断，nil 集合视为无权限
func HasPermission(set PermissionSet, name string) bool {
	if set == nil {
		return false
	}
	return set.Has(name)
}

type seedPermission struct {
	Name        string
	Description string
}

var seedPermissions = []seedPermission{
	{PermUsersRead, "View users"},
	{PermUsersWrite, "Create/update users"},
	{PermUsersDelete, "Delete users"},
	{PermAdAccountsRead, "View ad accounts"},
	{PermAdAccountsWrite, "Create/update ad accounts"},
	{PermAdAccountsDelete, "Delete ad accounts"},
	{PermCampaignsRead, "View campaigns"},
	{PermCampaignsWrite, "Create/update campaigns"},
	{PermCampaignsDelete, "Delete campaigns"},
	{PermAnalyticsRead, "View analytics"},
	{PermAnalyticsExport, "Export analytics"},
	{PermAdLibraryRead, "View ad library"},
	{PermAdLibraryWrite, "Create/update ad collections"},
	{PermBillingRead, "View billing information"},
	{PermBillingWrite, "Update billing information"},
	{PermRolesRead, "View roles and permissions"},
	{PermSubscriptionsWrite, "Manage own subscription"},
}

type seedRole struct {
	Name        string
	Description string
	Permissions []string // nil 表示全部权限
}

var seedRoles = []seedRole{
	{model.RoleAdmin, "Full system access", nil},
	{model.RoleManager, "Can manage campaigns and team members", []string{
		PermUsersRead, PermUsersWrite,
		PermAdAccountsRead, PermAdAccountsWrite,
		PermCampaignsRead, PermCampaignsWrite, PermCampaignsDelete,
		PermAnalyticsRead, PermAnalyticsExport,
		PermAdLibraryRead, PermAdLibraryWrite,
		PermBillingRead,
	}},
	{model.RoleAnalyst, "View-only access to campaigns and analytics", []string{
		PermAdAccountsRead, PermCampaignsRead,
		PermAnalyticsRead, PermAnalyticsExport,
		PermAdLibraryRead,
	}},
	{model.RoleCreator, "Can create and edit ads", []string{
		PermAdAccountsRead,
		PermCampaignsRead, PermCampaignsWrite,
		PermAnalyticsRead,
		PermAdLibraryRead, PermAdLibraryWrite,
	}},
	{model.RoleClient, "Limited access to specific campaigns", []string{
		PermCampaignsRead, PermAnalyticsRead,
	}},
	{model.RolePaidUser, "Paid subscriber", []string{
		PermAdAccountsRead, PermAdAccountsWrite,
		PermCampaignsRead, PermCampaignsWrite,
		PermAnalyticsRead, PermAnalyticsExport,
		PermAdLibraryRead, PermAdLibraryWrite,
		PermBillingRead, PermSubscriptionsWrite,
	}},
	{model.RoleFreeUser, "Free tier", []string{
		PermAdAccountsRead, PermCampaignsRead,
		PermAnalyticsRead, PermAdLibraryRead,
		PermBillingRead, PermSubscriptionsWrite,
	}},
}

type seedUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      string
}

var seedUsers = []seedUser{
	{"admin@example.com", "admin123", "Admin", "User", model.RoleAdmin},
	{"demo@example.com", "demo123", "Demo", "User", model.RoleManager},
}

var seedPlans = []model.SubscriptionPlan{
	{
		Name:            "Basic",
		Description:     "Connect one ad account with campaign and insight dashboards",
		Price:           29,
		BillingInterval: model.IntervalMonth,
		Features:        model.StringArray{"1 ad account", "Campaign dashboards", "Ad Library search"},
		IsActive:        true,
	},
	{
		Name:            "Pro",
		Description:     "Unlimited ad accounts, exports and ad collections",
		Price:           99,
		BillingInterval: model.IntervalMonth,
		Features:        model.StringArray{"Unlimited ad accounts", "CSV exports", "Ad collections", "Scheduled sync"},
		IsActive:        true,
	},
}

// SeedResult 初始化结果统计
type SeedResult struct {
	Roles       int
	Permissions int
	Users       int
	Plans       int
}

type RBACService struct {
	db       *gorm.DB
	rbacRepo *repository.RBACRepository
	userRepo *repository.UserRepository
	subRepo  *repository.SubscriptionRepository
}

func NewRBACService(
	db *gorm.DB,
	rbacRepo *repository.RBACRepository,
	userRepo *repository.UserRepository,
	subRepo *repository.SubscriptionRepository,
) *RBACService {
	return &RBACService{
		db:       db,
		rbacRepo: rbacRepo,
		userRepo: userRepo,
		subRepo:  subRepo,
	}
}

// ResolvePermissions 用户所有角色权限的并集；无角色或用户不存在时返回空集合
func (s *RBACService) ResolvePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	if userID <= 0 {
		return PermissionSet{}, nil
	}
	names, err := s.rbacRepo.PermissionNamesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve permissions for user %d: %w", userID, err)
	}
	return NewPermissionSet(names...), nil
}

// RoleNames 用户角色名
func (s *RBACService) RoleNames(ctx context.Context, userID int64) ([]string, error) {
	return s.rbacRepo.RoleNamesByUser(ctx, userID)
}

// ListRoles 所有角色（含权限）
func (s *RBACService) ListRoles(ctx context.Context) ([]*model.Role, error) {
	return s.rbacRepo.ListRoles(ctx)
}

// ListPermissions 所有权限
func (s *RBACService) ListPermissions(ctx context.Context) ([]*model.Permission, error) {
	return s.rbacRepo.ListPermissions(ctx)
}

// Seed 初始化角色、权限、默认用户和套餐，可重复执行
func (s *RBACService) Seed(ctx context.Context) (*SeedResult, error) {
	result := &SeedResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rbacRepo := s.rbacRepo.WithTx(tx)
		userRepo := s.userRepo.WithTx(tx)
		subRepo := s.subRepo.WithTx(tx)

		permIDs := make(map[string]int64, len(seedPermissions))
		allPerms := make([]string, 0, len(seedPermissions))
		for _, p := range seedPermissions {
			resource, action, _ := strings.Cut(p.Name, ":")
			perm := &model.Permission{
				Name:        p.Name,
				Resource:    resource,
				Action:      action,
				Description: p.Description,
			}
			if err := rbacRepo.FirstOrCreatePermission(ctx, perm); err != nil {
				return fmt.Errorf("seed permission %s: %w", p.Name, err)
			}
			permIDs[p.Name] = perm.ID
			allPerms = append(allPerms, p.Name)
		}
		result.Permissions = len(permIDs)

		roleIDs := make(map[string]int64, len(seedRoles))
		for _, r := range seedRoles {
			role := &model.Role{Name: r.Name, Description: r.Description, IsSystem: true}
			if err := rbacRepo.FirstOrCreateRole(ctx, role); err != nil {
				return fmt.Errorf("seed role %s: %w", r.Name, err)
			}
			roleIDs[r.Name] = role.ID

			perms := r.Permissions
			if perms == nil {
				perms = allPerms
			}
			for _, name := range perms {
				if err := rbacRepo.EnsureRolePermission(ctx, role.ID, permIDs[name]); err != nil {
					return fmt.Errorf("seed role %s permission %s: %w", r.Name, name, err)
				}
			}
		}
		result.Roles = len(roleIDs)

		for _, u := range seedUsers {
			user, err := userRepo.GetByEmail(ctx, u.Email)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				hash, herr := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
				if herr != nil {
					return herr
				}
				user = &model.User{
					Email:         u.Email,
					PasswordHash:  string(hash),
					FirstName:     u.FirstName,
					LastName:      u.LastName,
					Status:        model.UserStatusActive,
					EmailVerified: true,
				}
				if err := userRepo.Create(ctx, user); err != nil {
					return fmt.Errorf("seed user %s: %w", u.Email, err)
				}
				result.Users++
			} else if err != nil {
				return err
			}
			if err := rbacRepo.GrantRole(ctx, user.ID, roleIDs[u.Role]); err != nil {
				return fmt.Errorf("seed user %s role: %w", u.Email, err)
			}
		}

		for i := range seedPlans {
			plan := seedPlans[i]
			if err := subRepo.FirstOrCreatePlan(ctx, &plan); err != nil {
				return fmt.Errorf("seed plan %s: %w", plan.Name, err)
			}
			result.Plans++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
