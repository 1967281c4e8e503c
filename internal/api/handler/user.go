package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

type UserHandler struct {
	userService *service.UserService
	rbacService *service.RBACService
}

func NewUserHandler(userService *service.UserService, rbacService *service.RBACService) *UserHandler {
	return &UserHandler{
		userService: userService,
		rbacService: rbacService,
	}
}

// actor 当前用户及其权限，失败时已写入响应
func (h *UserHandler) actor(c *gin.Context) (service.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return service.Actor{}, false
	}
	perms, err := middleware.Permissions(c, h.rbacService)
	if err != nil {
		response.FromError(c, err)
		return service.Actor{}, false
	}
	return service.Actor{UserID: userID, Permissions: perms}, true
}

// List 用户列表
// GET /api/v1/users
func (h *UserHandler) List(c *gin.Context) {
	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	q.Normalize()

	items, total, err := h.userService.List(c.Request.Context(), q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessPage(c, total, q.Page, q.PageSize, items)
}

// Get 用户详情，本人或拥有 users:read
// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的用户ID")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	detail, err := h.userService.Get(c.Request.Context(), actor, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, detail)
}

// Create 管理员创建用户
// POST /api/v1/users
func (h *UserHandler) Create(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.userService.Create(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, info)
}

// Update 更新用户，本人或拥有 users:write
// PUT /api/v1/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的用户ID")
	if !ok {
		return
	}

	var req dto.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	info, err := h.userService.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", info)
}

// ResetPassword 管理员重置密码
// POST /api/v1/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的用户ID")
	if !ok {
		return
	}

	var req dto.AdminResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), id, req.Password); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "密码已重置", nil)
}

// Delete 删除用户
// DELETE /api/v1/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "id", "无效的用户ID")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.userService.Delete(c.Request.Context(), actor, id); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// Roles 全部角色
// GET /api/v1/users/roles/all
func (h *UserHandler) Roles(c *gin.Context) {
	roles, err := h.rbacService.ListRoles(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, roles)
}

// Permissions 全部权限
// GET /api/v1/users/permissions/all
func (h *UserHandler) Permissions(c *gin.Context) {
	perms, err := h.rbacService.ListPermissions(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, perms)
}
