package service

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/apperr"
	"github.com/qs3c/fbads_go_server/internal/pkg/jwt"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

var testMeta = ClientMeta{UserAgent: "go-test", IPAddress: "127.0.0.1"}

func TestAuthService_Register_Success(t *testing.T) {
	svc, db, mailer := setupAuth(t)
	ctx := context.Background()
	testutil.TestRole(t, db, model.RoleFreeUser, PermAnalyticsRead, PermBillingRead)

	resp, err := svc.Register(ctx, &dto.RegisterRequest{
		Email:     "NewUser@Example.com ",
		Password:  "password123",
		FirstName: "New",
		LastName:  "User",
	}, testMeta)
	require.NoError(t, err)

	assert.Equal(t, "newuser@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, []string{model.RoleFreeUser}, resp.User.Roles)
	assert.Equal(t, []string{PermAnalyticsRead, PermBillingRead}, resp.User.Permissions)

	claims, err := jwt.ParseTyped(resp.AccessToken, testSecret, jwt.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)

	var session model.Session
	require.NoError(t, db.Where("refresh_token = ?", resp.RefreshToken).First(&session).Error)
	assert.Equal(t, "go-test", session.UserAgent)
	assert.True(t, session.ExpiresAt.After(time.Now().Add(6*24*time.Hour)))

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "welcome", sent[0].Kind)
	assert.Equal(t, "New User", sent[0].Arg)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, db, _ := setupAuth(t)
	testutil.TestUser(t, db, testutil.WithEmail("dup@example.com"))

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "DUP@example.com",
		Password: "password123",
	}, testMeta)
	assert.ErrorIs(t, err, ErrEmailExists)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestAuthService_Register_WithoutSeededRole(t *testing.T) {
	svc, _, _ := setupAuth(t)

	resp, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Email:    "norole@example.com",
		Password: "password123",
	}, testMeta)
	require.NoError(t, err)
	assert.Empty(t, resp.User.Roles)
	assert.Empty(t, resp.User.Permissions)
}

func TestAuthService_Login(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db, testutil.WithEmail("login@example.com"))

	resp, err := svc.Login(ctx, &dto.LoginRequest{Email: "login@example.com", Password: testutil.DefaultPassword}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.User.ID)
	assert.NotNil(t, resp.User.LastLoginAt)

	var stored model.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestAuthService_Login_Failures(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	testutil.TestUser(t, db, testutil.WithEmail("active@example.com"))
	testutil.TestUser(t, db, testutil.WithEmail("off@example.com"), testutil.WithStatus(model.UserStatusInactive))

	tests := []struct {
		name    string
		email   string
		pass    string
		wantErr error
	}{
		{"wrong password", "active@example.com", "wrong-pass", ErrInvalidCredentials},
		{"unknown email", "ghost@example.com", testutil.DefaultPassword, ErrInvalidCredentials},
		{"inactive user", "off@example.com", testutil.DefaultPassword, ErrUserInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(ctx, &dto.LoginRequest{Email: tt.email, Password: tt.pass}, testMeta)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
		})
	}
}

func TestAuthService_Refresh_Rotates(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	testutil.TestUser(t, db, testutil.WithEmail("rotate@example.com"))

	first, err := svc.Login(ctx, &dto.LoginRequest{Email: "rotate@example.com", Password: testutil.DefaultPassword}, testMeta)
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken, testMeta)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// 旧令牌已失效
	_, err = svc.Refresh(ctx, first.RefreshToken, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Refresh(ctx, second.RefreshToken, testMeta)
	assert.NoError(t, err)
}

func TestAuthService_Refresh_Invalid(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db)

	access, err := jwt.GenerateTyped(user.ID, jwt.TokenTypeAccess, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, access, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// 签名有效但没有对应会话
	orphan, err := jwt.GenerateTyped(user.ID, jwt.TokenTypeRefresh, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, orphan, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Refresh(ctx, "garbage", testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_Refresh_ExpiredSession(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db)

	token, err := jwt.GenerateTyped(user.ID, jwt.TokenTypeRefresh, testSecret, time.Hour)
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.Session{
		UserID:       user.ID,
		RefreshToken: token,
		ExpiresAt:    time.Now().Add(-time.Minute),
	}).Error)

	_, err = svc.Refresh(ctx, token, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	var count int64
	db.Model(&model.Session{}).Where("refresh_token = ?", token).Count(&count)
	assert.Zero(t, count)
}

func TestAuthService_Logout_Idempotent(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	testutil.TestUser(t, db, testutil.WithEmail("bye@example.com"))

	resp, err := svc.Login(ctx, &dto.LoginRequest{Email: "bye@example.com", Password: testutil.DefaultPassword}, testMeta)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, resp.RefreshToken))
	require.NoError(t, svc.Logout(ctx, resp.RefreshToken))
	require.NoError(t, svc.Logout(ctx, ""))

	_, err = svc.Refresh(ctx, resp.RefreshToken, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_PasswordReset_Flow(t *testing.T) {
	svc, db, mailer := setupAuth(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db, testutil.WithEmail("reset@example.com"))

	login, err := svc.Login(ctx, &dto.LoginRequest{Email: "reset@example.com", Password: testutil.DefaultPassword}, testMeta)
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "reset@example.com"))

	sent := mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "reset", sent[0].Kind)
	require.True(t, strings.HasPrefix(sent[0].Arg, "http://localhost:3000/reset-password?token="))

	link, err := url.Parse(sent[0].Arg)
	require.NoError(t, err)
	token := link.Query().Get("token")
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(ctx, token, "brand-new-pass"))

	var stored model.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.Nil(t, stored.PasswordResetToken)
	assert.Nil(t, stored.PasswordResetExpires)

	// 所有会话被注销
	_, err = svc.Refresh(ctx, login.RefreshToken, testMeta)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "reset@example.com", Password: "brand-new-pass"}, testMeta)
	assert.NoError(t, err)

	// 令牌只能使用一次
	err = svc.ResetPassword(ctx, token, "another-pass-1")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestAuthService_RequestPasswordReset_UnknownEmail(t *testing.T) {
	svc, _, mailer := setupAuth(t)

	err := svc.RequestPasswordReset(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Empty(t, mailer.Sent())
}

func TestAuthService_RequestPasswordReset_MailerOff(t *testing.T) {
	svc, db, mailer := setupAuth(t)
	mailer.configured = false
	user := testutil.TestUser(t, db, testutil.WithEmail("quiet@example.com"))

	require.NoError(t, svc.RequestPasswordReset(context.Background(), "quiet@example.com"))
	assert.Empty(t, mailer.Sent())

	var stored model.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.NotNil(t, stored.PasswordResetToken)
}

func TestAuthService_ResetPassword_InvalidToken(t *testing.T) {
	svc, db, _ := setupAuth(t)
	user := testutil.TestUser(t, db)

	err := svc.ResetPassword(context.Background(), "not-a-token", "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	// 有效签名但未保存在用户上
	token, err := jwt.GenerateTyped(user.ID, jwt.TokenTypeReset, testSecret, time.Hour)
	require.NoError(t, err)
	err = svc.ResetPassword(context.Background(), token, "brand-new-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db, testutil.WithEmail("change@example.com"))

	err := svc.ChangePassword(ctx, user.ID, &dto.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "new-password"})
	assert.ErrorIs(t, err, ErrWrongPassword)

	err = svc.ChangePassword(ctx, user.ID, &dto.ChangePasswordRequest{CurrentPassword: testutil.DefaultPassword, NewPassword: "new-password"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &dto.LoginRequest{Email: "change@example.com", Password: "new-password"}, testMeta)
	assert.NoError(t, err)
}

func TestAuthService_MeAndUpdateMe(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	user := testutil.TestUserWithPermissions(t, db, PermCampaignsRead, PermAnalyticsRead)

	info, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, info.Email)
	assert.Len(t, info.Roles, 1)
	assert.Equal(t, []string{PermAnalyticsRead, PermCampaignsRead}, info.Permissions)

	company := "Acme"
	title := "CMO"
	info, err = svc.UpdateMe(ctx, user.ID, &dto.UpdateProfileRequest{CompanyName: &company, JobTitle: &title})
	require.NoError(t, err)
	assert.Equal(t, "Acme", info.CompanyName)
	assert.Equal(t, "CMO", info.JobTitle)
	assert.Equal(t, user.FirstName, info.FirstName)

	_, err = svc.Me(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestAuthService_PurgeExpired(t *testing.T) {
	svc, db, _ := setupAuth(t)
	ctx := context.Background()
	user := testutil.TestUser(t, db)

	past := time.Now().Add(-time.Hour)
	token := "stale-reset"
	require.NoError(t, db.Create(&model.Session{UserID: user.ID, RefreshToken: "old", ExpiresAt: past}).Error)
	require.NoError(t, db.Create(&model.Session{UserID: user.ID, RefreshToken: "live", ExpiresAt: time.Now().Add(time.Hour)}).Error)
	require.NoError(t, db.Model(&model.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"password_reset_token":   token,
		"password_reset_expires": past,
	}).Error)

	sessions, tokens, err := svc.CountExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessions)
	assert.Equal(t, int64(1), tokens)

	sessions, tokens, err = svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sessions)
	assert.Equal(t, int64(1), tokens)

	var remaining int64
	db.Model(&model.Session{}).Count(&remaining)
	assert.Equal(t, int64(1), remaining)
}
