package service

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// Actor 发起操作的用户及其权限
type Actor struct {
	UserID      int64
	Permissions PermissionSet
}

// CanAccessUser 本人或拥有指定权限
func (a Actor) CanAccessUser(targetID int64, perm string) bool {
	return a.UserID == targetID || HasPermission(a.Permissions, perm)
}

type UserService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	rbacRepo    *repository.RBACRepository
	fbRepo      *repository.FacebookRepository
	subRepo     *repository.SubscriptionRepository
	rbac        *RBACService
	hashCost    int
}

func NewUserService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
	rbacRepo *repository.RBACRepository,
	fbRepo *repository.FacebookRepository,
	subRepo *repository.SubscriptionRepository,
	rbac *RBACService,
) *UserService {
	return &UserService{
		db:          db,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		rbacRepo:    rbacRepo,
		fbRepo:      fbRepo,
		subRepo:     subRepo,
		rbac:        rbac,
		hashCost:    bcrypt.DefaultCost,
	}
}

// List 分页用户列表
func (s *UserService) List(ctx context.Context, q dto.PageQuery) ([]*dto.UserListItem, int64, error) {
	q.Normalize()
	users, total, err := s.userRepo.List(ctx, q.Offset(), q.PageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.UserListItem, 0, len(users))
	for _, u := range users {
		items = append(items, &dto.UserListItem{UserInfo: *toUserInfo(u, nil)})
	}
	return items, total, nil
}

// Get 用户详情：角色、权限、Facebook 账户和当前订阅
func (s *UserService) Get(ctx context.Context, actor Actor, id int64) (*dto.UserDetail, error) {
	if !actor.CanAccessUser(id, PermUsersRead) {
		return nil, ErrForbidden
	}

	user, err := s.userRepo.GetByIDWithRoles(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	perms, err := s.rbac.ResolvePermissions(ctx, id)
	if err != nil {
		return nil, err
	}

	accounts, err := s.fbRepo.ListAccountsByUser(ctx, id)
	if err != nil {
		return nil, err
	}
	fbAccounts := make([]model.FacebookAccount, 0, len(accounts))
	for _, a := range accounts {
		fbAccounts = append(fbAccounts, *a)
	}

	sub, err := s.subRepo.GetCurrentByUser(ctx, id, time.Now())
	if err != nil && !isNotFound(err) {
		return nil, err
	}

	return &dto.UserDetail{
		UserInfo:         *toUserInfo(user, perms.Slice()),
		FacebookAccounts: fbAccounts,
		Subscription:     sub,
	}, nil
}

// Create 管理员创建用户，未指定角色时授予 FREE_USER
func (s *UserService) Create(ctx context.Context, req *dto.CreateUserRequest) (*dto.UserInfo, error) {
	email := normalizeEmail(req.Email)
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	roleIDs := uniqueIDs(req.RoleIDs)
	if err := s.checkRoles(ctx, roleIDs); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CompanyName:  req.CompanyName,
		JobTitle:     req.JobTitle,
		Phone:        req.Phone,
		Status:       model.UserStatusActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		rbacRepo := s.rbacRepo.WithTx(tx)
		if len(roleIDs) == 0 {
			return grantRoleByName(ctx, rbacRepo, user.ID, model.RoleFreeUser)
		}
		return rbacRepo.ReplaceUserRoles(ctx, user.ID, roleIDs)
	})
	if err != nil {
		return nil, err
	}

	return s.info(ctx, user.ID)
}

// Update 更新用户；邮箱、状态和角色只有 users:write 才能修改
func (s *UserService) Update(ctx context.Context, actor Actor, id int64, req *dto.UpdateUserRequest) (*dto.UserInfo, error) {
	if !actor.CanAccessUser(id, PermUsersWrite) {
		return nil, ErrForbidden
	}
	admin := HasPermission(actor.Permissions, PermUsersWrite)
	if !admin && (req.Email != nil || req.Status != nil || req.RoleIDs != nil) {
		return nil, ErrAdminOnlyFields
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	fields := profileFields(&req.UpdateProfileRequest)
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email != user.Email {
			exists, err := s.userRepo.ExistsByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, ErrEmailExists
			}
			fields["email"] = email
		}
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}

	var roleIDs []int64
	if req.RoleIDs != nil {
		roleIDs = uniqueIDs(*req.RoleIDs)
		if err := s.checkRoles(ctx, roleIDs); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) > 0 {
			if err := s.userRepo.WithTx(tx).UpdateFields(ctx, id, fields); err != nil {
				return err
			}
		}
		if req.RoleIDs != nil {
			return s.rbacRepo.WithTx(tx).ReplaceUserRoles(ctx, id, roleIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.info(ctx, id)
}

// ResetPassword 管理员重置密码并注销该用户所有会话
func (s *UserService) ResetPassword(ctx context.Context, id int64, password string) error {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).UpdateFields(ctx, id, map[string]interface{}{"password_hash": string(hash)}); err != nil {
			return err
		}
		return s.sessionRepo.WithTx(tx).DeleteByUserID(ctx, id)
	})
}

// Delete 删除用户及其角色和会话
func (s *UserService) Delete(ctx context.Context, actor Actor, id int64) error {
	if actor.UserID == id {
		return ErrDeleteSelf
	}
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.rbacRepo.WithTx(tx).DeleteUserRoles(ctx, id); err != nil {
			return err
		}
		if err := s.sessionRepo.WithTx(tx).DeleteByUserID(ctx, id); err != nil {
			return err
		}
		return s.userRepo.WithTx(tx).Delete(ctx, id)
	})
}

func (s *UserService) info(ctx context.Context, id int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByIDWithRoles(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserInfo(user, nil), nil
}

func (s *UserService) checkRoles(ctx context.Context, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}
	count, err := s.rbacRepo.CountRolesByIDs(ctx, roleIDs)
	if err != nil {
		return err
	}
	if count != int64(len(roleIDs)) {
		return ErrRoleNotFound
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
