package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *testEnv) {
	t.Helper()

	env := newTestEnv(t)
	authService := service.NewAuthService(env.DB, env.User, env.Session, env.RBAC, env.rbacService(), nil, env.Cfg)
	return NewAuthHandler(authService), env
}

func authRoutes(h *AuthHandler, userID int64) *gin.Engine {
	router := gin.New()
	router.POST("/register", h.Register)
	router.POST("/login", h.Login)
	router.POST("/refresh", h.Refresh)
	router.POST("/logout", h.Logout)
	router.POST("/password/reset", h.ForgotPassword)
	router.PUT("/password/reset", h.ResetPassword)

	me := router.Group("")
	if userID != 0 {
		me.Use(mockAuth(userID))
	}
	me.GET("/me", h.Me)
	me.PUT("/me", h.UpdateMe)
	me.POST("/change-password", h.ChangePassword)
	return router
}

func TestAuthHandler_Register(t *testing.T) {
	h, env := setupAuthHandler(t)
	testutil.TestRole(t, env.DB, model.RoleFreeUser, service.PermAnalyticsRead)
	router := authRoutes(h, 0)

	w := request(router, http.MethodPost, "/register", dto.RegisterRequest{
		Email:     "new@example.com",
		Password:  "password123",
		FirstName: "New",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := dataMap(t, parseResponse(t, w))
	assert.NotEmpty(t, data["access_token"])
	assert.NotEmpty(t, data["refresh_token"])
	user := data["user"].(map[string]interface{})
	assert.Equal(t, "new@example.com", user["email"])
	assert.Equal(t, []interface{}{model.RoleFreeUser}, user["roles"])

	w = request(router, http.MethodPost, "/register", dto.RegisterRequest{Email: "NEW@example.com", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeDuplicateAction, parseResponse(t, w).Code)
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	h, _ := setupAuthHandler(t)
	router := authRoutes(h, 0)

	tests := []struct {
		name string
		body dto.RegisterRequest
	}{
		{"malformed email", dto.RegisterRequest{Email: "not-an-email", Password: "password123"}},
		{"short password", dto.RegisterRequest{Email: "a@example.com", Password: "short"}},
		{"missing email", dto.RegisterRequest{Password: "password123"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(router, http.MethodPost, "/register", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, response.CodeParamError, parseResponse(t, w).Code)
		})
	}
}

func TestAuthHandler_LoginRefreshLogout(t *testing.T) {
	h, env := setupAuthHandler(t)
	user := testutil.TestUser(t, env.DB, testutil.WithEmail("login@example.com"))
	router := authRoutes(h, 0)

	w := request(router, http.MethodPost, "/login", dto.LoginRequest{Email: "login@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.CodeAuthFailed, parseResponse(t, w).Code)

	w = request(router, http.MethodPost, "/login", dto.LoginRequest{Email: "login@example.com", Password: testutil.DefaultPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	refresh := dataMap(t, parseResponse(t, w))["refresh_token"].(string)

	w = request(router, http.MethodPost, "/refresh", dto.RefreshRequest{RefreshToken: refresh})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rotated := dataMap(t, parseResponse(t, w))["refresh_token"].(string)
	assert.NotEqual(t, refresh, rotated)

	// 旧令牌已轮换作废
	w = request(router, http.MethodPost, "/refresh", dto.RefreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for i := 0; i < 2; i++ {
		w = request(router, http.MethodPost, "/logout", dto.LogoutRequest{RefreshToken: rotated})
		assert.Equal(t, http.StatusOK, w.Code)
	}

	var sessions int64
	env.DB.Model(&model.Session{}).Where("user_id = ?", user.ID).Count(&sessions)
	assert.Zero(t, sessions)
}

func TestAuthHandler_Login_Inactive(t *testing.T) {
	h, env := setupAuthHandler(t)
	testutil.TestUser(t, env.DB, testutil.WithEmail("off@example.com"), testutil.WithStatus(model.UserStatusInactive))

	w := request(authRoutes(h, 0), http.MethodPost, "/login", dto.LoginRequest{Email: "off@example.com", Password: testutil.DefaultPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_ForgotPassword_SameMessage(t *testing.T) {
	h, env := setupAuthHandler(t)
	testutil.TestUser(t, env.DB, testutil.WithEmail("known@example.com"))
	router := authRoutes(h, 0)

	known := request(router, http.MethodPost, "/password/reset", dto.ForgotPasswordRequest{Email: "known@example.com"})
	unknown := request(router, http.MethodPost, "/password/reset", dto.ForgotPasswordRequest{Email: "ghost@example.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, parseResponse(t, known).Message, parseResponse(t, unknown).Message)

	w := request(router, http.MethodPut, "/password/reset", dto.ResetPasswordRequest{Token: "bogus", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Me(t *testing.T) {
	h, env := setupAuthHandler(t)
	user := testutil.TestUserWithPermissions(t, env.DB, service.PermCampaignsRead)

	w := request(authRoutes(h, user.ID), http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, parseResponse(t, w))
	assert.Equal(t, user.Email, data["email"])
	assert.Equal(t, []interface{}{service.PermCampaignsRead}, data["permissions"])

	w = request(authRoutes(h, 0), http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_UpdateMeAndChangePassword(t *testing.T) {
	h, env := setupAuthHandler(t)
	user := testutil.TestUser(t, env.DB)
	router := authRoutes(h, user.ID)

	company := "Acme"
	w := request(router, http.MethodPut, "/me", dto.UpdateProfileRequest{CompanyName: &company})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Acme", dataMap(t, parseResponse(t, w))["company_name"])

	w = request(router, http.MethodPost, "/change-password", dto.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "password456"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(router, http.MethodPost, "/change-password", dto.ChangePasswordRequest{CurrentPassword: testutil.DefaultPassword, NewPassword: "password456"})
	assert.Equal(t, http.StatusOK, w.Code)
}
