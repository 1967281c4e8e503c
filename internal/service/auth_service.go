package service

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/jwt"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// Mailer 邮件发送
type Mailer interface {
	Configured() bool
	SendPasswordReset(to, resetLink string) error
	SendWelcome(to, name string) error
	SendPaymentFailed(to, planName, billingLink string) error
}

// ClientMeta 登录请求的客户端信息
type ClientMeta struct {
	UserAgent string
	IPAddress string
}

type AuthService struct {
	db          *gorm.DB
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	rbacRepo    *repository.RBACRepository
	rbac        *RBACService
	mailer      Mailer
	cfg         *config.Config
	hashCost    int
}

func NewAuthService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
	rbacRepo *repository.RBACRepository,
	rbac *RBACService,
	mailer Mailer,
	cfg *config.Config,
) *AuthService {
	return &AuthService{
		db:          db,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		rbacRepo:    rbacRepo,
		rbac:        rbac,
		mailer:      mailer,
		cfg:         cfg,
		hashCost:    bcrypt.DefaultCost,
	}
}

// Register 用户注册，默认授予 FREE_USER
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest, meta ClientMeta) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
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
		Status:       model.UserStatusActive,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.userRepo.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		return grantRoleByName(ctx, s.rbacRepo.WithTx(tx), user.ID, model.RoleFreeUser)
	})
	if err != nil {
		return nil, err
	}

	if s.mailer != nil && s.mailer.Configured() {
		if err := s.mailer.SendWelcome(user.Email, displayName(user)); err != nil {
			log.Warn().Err(err).Int64("user_id", user.ID).Msg("send welcome email failed")
		}
	}

	return s.issueTokens(ctx, user, meta)
}

// Login 邮箱密码登录
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, meta ClientMeta) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, ErrUserInactive
	}

	now := time.Now()
	if err := s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{"last_login_at": now}); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	return s.issueTokens(ctx, user, meta)
}

// Refresh 轮换刷新令牌，旧令牌立即失效
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta ClientMeta) (*dto.AuthResponse, error) {
	claims, err := jwt.ParseTyped(refreshToken, s.cfg.JWT.Secret, jwt.TokenTypeRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	session, err := s.sessionRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if session.UserID != claims.UserID || time.Now().After(session.ExpiresAt) {
		_, _ = s.sessionRepo.DeleteByToken(ctx, refreshToken)
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !user.IsActive() {
		return nil, ErrUserInactive
	}

	resp, newSession, err := s.buildTokens(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessions := s.sessionRepo.WithTx(tx)
		deleted, err := sessions.DeleteByToken(ctx, refreshToken)
		if err != nil {
			return err
		}
		// 并发刷新时只有一个请求能删除旧会话
		if !deleted {
			return ErrInvalidRefreshToken
		}
		return sessions.Create(ctx, newSession)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Logout 删除会话，重复调用无副作用
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	_, err := s.sessionRepo.DeleteByToken(ctx, refreshToken)
	return err
}

// RequestPasswordReset 生成重置令牌并发送邮件，邮箱不存在时同样返回成功
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}

	ttl := s.cfg.JWT.ResetTTL()
	token, err := jwt.GenerateTyped(user.ID, jwt.TokenTypeReset, s.cfg.JWT.Secret, ttl)
	if err != nil {
		return err
	}
	expires := time.Now().Add(ttl)

	err = s.userRepo.UpdateFields(ctx, user.ID, map[string]interface{}{
		"password_reset_token":   token,
		"password_reset_expires": expires,
	})
	if err != nil {
		return err
	}

	if s.mailer == nil || !s.mailer.Configured() {
		log.Warn().Int64("user_id", user.ID).Msg("smtp not configured, password reset email skipped")
		return nil
	}
	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(s.cfg.Frontend.URL, "/"), url.QueryEscape(token))
	if err := s.mailer.SendPasswordReset(user.Email, link); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("send password reset email failed")
	}
	return nil
}

// ResetPassword 使用重置令牌设置新密码，并注销所有会话
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	claims, err := jwt.ParseTyped(token, s.cfg.JWT.Secret, jwt.TokenTypeReset)
	if err != nil {
		return ErrInvalidResetToken
	}

	user, err := s.userRepo.GetByResetToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return ErrInvalidResetToken
		}
		return err
	}
	if user.ID != claims.UserID || user.PasswordResetExpires == nil || time.Now().After(*user.PasswordResetExpires) {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.userRepo.WithTx(tx).UpdateFields(ctx, user.ID, map[string]interface{}{
			"password_hash":          string(hash),
			"password_reset_token":   nil,
			"password_reset_expires": nil,
		})
		if err != nil {
			return err
		}
		return s.sessionRepo.WithTx(tx).DeleteByUserID(ctx, user.ID)
	})
}

// GetUserByID 认证中间件使用
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

// Me 当前用户信息（含角色和权限）
func (s *AuthService) Me(ctx context.Context, userID int64) (*dto.UserInfo, error) {
	user, err := s.userRepo.GetByIDWithRoles(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	perms, err := s.rbac.ResolvePermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserInfo(user, perms.Slice()), nil
}

// UpdateMe 更新个人资料
func (s *AuthService) UpdateMe(ctx context.Context, userID int64, req *dto.UpdateProfileRequest) (*dto.UserInfo, error) {
	fields := profileFields(req)
	if len(fields) > 0 {
		if err := s.userRepo.UpdateFields(ctx, userID, fields); err != nil {
			return nil, err
		}
	}
	return s.Me(ctx, userID)
}

// ChangePassword 修改密码，需要校验当前密码
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req *dto.ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.hashCost)
	if err != nil {
		return err
	}
	return s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{"password_hash": string(hash)})
}

// PurgeExpired 清理过期会话和过期的重置令牌
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, int64, error) {
	now := time.Now()
	sessions, err := s.sessionRepo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("purge sessions: %w", err)
	}
	tokens, err := s.userRepo.ClearExpiredResetTokens(ctx, now)
	if err != nil {
		return sessions, 0, fmt.Errorf("clear reset tokens: %w", err)
	}
	return sessions, tokens, nil
}

// CountExpired 统计待清理数量
func (s *AuthService) CountExpired(ctx context.Context) (int64, int64, error) {
	now := time.Now()
	sessions, err := s.sessionRepo.CountExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	tokens, err := s.userRepo.CountExpiredResetTokens(ctx, now)
	if err != nil {
		return sessions, 0, err
	}
	return sessions, tokens, nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *model.User, meta ClientMeta) (*dto.AuthResponse, error) {
	resp, session, err := s.buildTokens(ctx, user, meta)
	if err != nil {
		return nil, err
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *AuthService) buildTokens(ctx context.Context, user *model.User, meta ClientMeta) (*dto.AuthResponse, *model.Session, error) {
	accessTTL := s.cfg.JWT.AccessTTL()
	refreshTTL := s.cfg.JWT.RefreshTTL()

	access, err := jwt.GenerateTyped(user.ID, jwt.TokenTypeAccess, s.cfg.JWT.Secret, accessTTL)
	if err != nil {
		return nil, nil, err
	}
	refresh, err := jwt.GenerateTyped(user.ID, jwt.TokenTypeRefresh, s.cfg.JWT.Secret, refreshTTL)
	if err != nil {
		return nil, nil, err
	}

	session := &model.Session{
		UserID:       user.ID,
		RefreshToken: refresh,
		UserAgent:    truncate(meta.UserAgent, 500),
		IPAddress:    truncate(meta.IPAddress, 64),
		ExpiresAt:    time.Now().Add(refreshTTL),
	}

	roles, err := s.rbacRepo.RoleNamesByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	perms, err := s.rbac.ResolvePermissions(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	info := toUserInfo(user, perms.Slice())
	info.Roles = roles

	return &dto.AuthResponse{
		User:         info,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(accessTTL.Seconds()),
	}, session, nil
}

// grantRoleByName 按名称授予角色，角色未初始化时跳过
func grantRoleByName(ctx context.Context, rbacRepo *repository.RBACRepository, userID int64, name string) error {
	role, err := rbacRepo.GetRoleByName(ctx, name)
	if err != nil {
		if isNotFound(err) {
			log.Warn().Str("role", name).Int64("user_id", userID).Msg("role not seeded, grant skipped")
			return nil
		}
		return err
	}
	return rbacRepo.GrantRole(ctx, userID, role.ID)
}

func toUserInfo(user *model.User, permissions []string) *dto.UserInfo {
	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, r.Name)
	}
	sort.Strings(roles)

	return &dto.UserInfo{
		ID:              user.ID,
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		CompanyName:     user.CompanyName,
		JobTitle:        user.JobTitle,
		Phone:           user.Phone,
		ProfileImageURL: user.ProfileImageURL,
		Status:          user.Status,
		EmailVerified:   user.EmailVerified,
		LastLoginAt:     user.LastLoginAt,
		Roles:           roles,
		Permissions:     permissions,
		CreatedAt:       user.CreatedAt,
	}
}

func profileFields(req *dto.UpdateProfileRequest) map[string]interface{} {
	fields := make(map[string]interface{})
	if req == nil {
		return fields
	}
	if req.FirstName != nil {
		fields["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		fields["last_name"] = *req.LastName
	}
	if req.CompanyName != nil {
		fields["company_name"] = *req.CompanyName
	}
	if req.JobTitle != nil {
		fields["job_title"] = *req.JobTitle
	}
	if req.Phone != nil {
		fields["phone"] = *req.Phone
	}
	if req.ProfileImageURL != nil {
		fields["profile_image_url"] = *req.ProfileImageURL
	}
	return fields
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayName(user *model.User) string {
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		return user.Email
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
