package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

type AdAccountHandler struct {
	adAccountService *service.AdAccountService
}

func NewAdAccountHandler(adAccountService *service.AdAccountService) *AdAccountHandler {
	return &AdAccountHandler{
		adAccountService: adAccountService,
	}
}

type dateQuery struct {
	StartDate string `form:"start_date" binding:"omitempty,ymd"`
	EndDate   string `form:"end_date" binding:"omitempty,ymd"`
}

// List 广告账户列表
// GET /api/v1/ad-accounts
func (h *AdAccountHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	accounts, err := h.adAccountService.List(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, accounts)
}

// Get 广告账户详情
// GET /api/v1/ad-accounts/:id
func (h *AdAccountHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告账户ID")
	if !ok {
		return
	}

	account, err := h.adAccountService.Get(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, account)
}

// Update 修改广告账户名称
// PUT /api/v1/ad-accounts/:id
func (h *AdAccountHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告账户ID")
	if !ok {
		return
	}

	var req dto.UpdateAdAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	account, err := h.adAccountService.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", account)
}

// Campaigns 广告账户下的广告系列
// GET /api/v1/ad-accounts/:id/campaigns
func (h *AdAccountHandler) Campaigns(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告账户ID")
	if !ok {
		return
	}

	var q dto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	q.Normalize()

	campaigns, total, err := h.adAccountService.Campaigns(c.Request.Context(), userID, id, q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessPage(c, total, q.Page, q.PageSize, campaigns)
}

// Insights 账户层级洞察，默认最近 30 天
// GET /api/v1/ad-accounts/:id/insights
func (h *AdAccountHandler) Insights(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告账户ID")
	if !ok {
		return
	}

	var q dateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	rows, err := h.adAccountService.Insights(c.Request.Context(), userID, id, q.StartDate, q.EndDate)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, rows)
}

// Users 广告账户成员
// GET /api/v1/ad-accounts/:id/users
func (h *AdAccountHandler) Users(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告账户ID")
	if !ok {
		return
	}

	users, err := h.adAccountService.Users(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, users)
}
