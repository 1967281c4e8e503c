package handler

import (
	"fmt"
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

func setupUserHandler(t *testing.T) (*UserHandler, *testEnv) {
	t.Helper()

	env := newTestEnv(t)
	rbac := env.rbacService()
	userService := service.NewUserService(env.DB, env.User, env.Session, env.RBAC, env.FB, env.Sub, rbac)
	return NewUserHandler(userService, rbac), env
}

func userRoutes(h *UserHandler, userID int64) *gin.Engine {
	router := gin.New()
	router.Use(mockAuth(userID))
	router.GET("/users", h.List)
	router.POST("/users", h.Create)
	router.GET("/users/roles/all", h.Roles)
	router.GET("/users/permissions/all", h.Permissions)
	router.GET("/users/:id", h.Get)
	router.PUT("/users/:id", h.Update)
	router.POST("/users/:id/reset-password", h.ResetPassword)
	router.DELETE("/users/:id", h.Delete)
	return router
}

func TestUserHandler_List(t *testing.T) {
	h, env := setupUserHandler(t)
	admin := testutil.TestUserWithPermissions(t, env.DB, service.PermUsersRead)
	for i := 0; i < 4; i++ {
		testutil.TestUser(t, env.DB)
	}

	w := request(userRoutes(h, admin.ID), http.MethodGet, "/users?page=2&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, parseResponse(t, w))
	assert.Equal(t, float64(5), data["total"])
	assert.Equal(t, float64(2), data["page"])
	assert.Len(t, data["items"], 2)

	w = request(userRoutes(h, admin.ID), http.MethodGet, "/users?page_size=1000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandler_Get_SelfOrAdmin(t *testing.T) {
	h, env := setupUserHandler(t)
	member := testutil.TestUser(t, env.DB)
	other := testutil.TestUser(t, env.DB)
	admin := testutil.TestUserWithPermissions(t, env.DB, service.PermUsersRead)

	tests := []struct {
		name   string
		actor  int64
		target string
		status int
		code   int
	}{
		{"self", member.ID, fmt.Sprint(member.ID), http.StatusOK, response.CodeSuccess},
		{"other without permission", member.ID, fmt.Sprint(other.ID), http.StatusForbidden, response.CodePermissionDenied},
		{"admin", admin.ID, fmt.Sprint(other.ID), http.StatusOK, response.CodeSuccess},
		{"not found", admin.ID, "999999", http.StatusNotFound, response.CodeResourceNotFound},
		{"invalid id", admin.ID, "abc", http.StatusBadRequest, response.CodeParamError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(userRoutes(h, tt.actor), http.MethodGet, "/users/"+tt.target, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, parseResponse(t, w).Code)
		})
	}
}

func TestUserHandler_Get_Detail(t *testing.T) {
	h, env := setupUserHandler(t)
	user := testutil.TestUserWithPermissions(t, env.DB, service.PermCampaignsRead)
	testutil.TestFacebookAccount(t, env.DB, user.ID)

	w := request(userRoutes(h, user.ID), http.MethodGet, fmt.Sprintf("/users/%d", user.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := dataMap(t, parseResponse(t, w))
	assert.Equal(t, []interface{}{service.PermCampaignsRead}, data["permissions"])
	assert.Len(t, data["facebook_accounts"], 1)
	assert.Nil(t, data["subscription"])
}

func TestUserHandler_CreateUpdateDelete(t *testing.T) {
	h, env := setupUserHandler(t)
	testutil.TestRole(t, env.DB, model.RoleFreeUser)
	admin := testutil.TestUserWithPermissions(t, env.DB, service.PermUsersRead, service.PermUsersWrite)
	router := userRoutes(h, admin.ID)

	w := request(router, http.MethodPost, "/users", dto.CreateUserRequest{Email: "created@example.com", Password: "password123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := dataMap(t, parseResponse(t, w))
	id := int64(created["id"].(float64))
	assert.Equal(t, []interface{}{model.RoleFreeUser}, created["roles"])

	w = request(router, http.MethodPost, "/users", dto.CreateUserRequest{Email: "created@example.com", Password: "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeDuplicateAction, parseResponse(t, w).Code)

	status := model.UserStatusInactive
	w = request(router, http.MethodPut, fmt.Sprintf("/users/%d", id), dto.UpdateUserRequest{Status: &status})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.UserStatusInactive, dataMap(t, parseResponse(t, w))["status"])

	w = request(router, http.MethodPost, fmt.Sprintf("/users/%d/reset-password", id), dto.AdminResetPasswordRequest{Password: "newpassword1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(router, http.MethodDelete, fmt.Sprintf("/users/%d", admin.ID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(router, http.MethodDelete, fmt.Sprintf("/users/%d", id), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = request(router, http.MethodGet, fmt.Sprintf("/users/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserHandler_Update_SelfCannotChangeStatus(t *testing.T) {
	h, env := setupUserHandler(t)
	member := testutil.TestUser(t, env.DB)
	router := userRoutes(h, member.ID)

	status := model.UserStatusInactive
	w := request(router, http.MethodPut, fmt.Sprintf("/users/%d", member.ID), dto.UpdateUserRequest{Status: &status})
	assert.Equal(t, http.StatusForbidden, w.Code)

	title := "Media buyer"
	w = request(router, http.MethodPut, fmt.Sprintf("/users/%d", member.ID), dto.UpdateUserRequest{
		UpdateProfileRequest: dto.UpdateProfileRequest{JobTitle: &title},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Media buyer", dataMap(t, parseResponse(t, w))["job_title"])
}

func TestUserHandler_RolesAndPermissions(t *testing.T) {
	h, env := setupUserHandler(t)
	testutil.TestRole(t, env.DB, model.RoleAdmin, service.PermUsersRead, service.PermRolesRead)
	admin := testutil.TestUser(t, env.DB)
	router := userRoutes(h, admin.ID)

	w := request(router, http.MethodGet, "/users/roles/all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataList(t, parseResponse(t, w)), 1)

	w = request(router, http.MethodGet, "/users/permissions/all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataList(t, parseResponse(t, w)), 2)
}
