package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

const resetRequestedMessage = "如果该邮箱已注册，重置链接已发送"

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req, clientMeta(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, resp)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req, clientMeta(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}

// Refresh 轮换刷新令牌
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, resp)
}

// Logout 退出登录，重复调用不报错
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req dto.LogoutRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已退出登录", nil)
}

// ForgotPassword 申请重置密码，无论邮箱是否存在都返回相同消息
// POST /api/v1/auth/password/reset
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, resetRequestedMessage, nil)
}

// ResetPassword 使用重置令牌设置新密码
// PUT /api/v1/auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req dto.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "密码已重置，请重新登录", nil)
}

// Me 当前用户
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.authService.Me(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, info)
}

// UpdateMe 更新个人资料
// PUT /api/v1/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.authService.UpdateMe(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", info)
}

// ChangePassword 修改密码
// POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), userID, &req); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "密码修改成功", nil)
}
