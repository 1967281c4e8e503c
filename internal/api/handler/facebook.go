package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

type FacebookHandler struct {
	facebookService *service.FacebookService
}

func NewFacebookHandler(facebookService *service.FacebookService) *FacebookHandler {
	return &FacebookHandler{
		facebookService: facebookService,
	}
}

// AuthURL 获取授权地址
// GET /api/v1/facebook/auth-url
func (h *FacebookHandler) AuthURL(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.facebookService.AuthURL(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, resp)
}

// Callback OAuth 回调，换取长期令牌并保存账户
// POST /api/v1/facebook/callback
func (h *FacebookHandler) Callback(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.FacebookCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	account, err := h.facebookService.Callback(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "Facebook 账户已连接", account)
}

// Accounts 已连接的 Facebook 账户
// GET /api/v1/facebook/accounts
func (h *FacebookHandler) Accounts(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	accounts, err := h.facebookService.Accounts(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, accounts)
}

// DeleteAccount 断开 Facebook 账户
// DELETE /api/v1/facebook/accounts/:id
func (h *FacebookHandler) DeleteAccount(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的账户ID")
	if !ok {
		return
	}

	if err := h.facebookService.DeleteAccount(c.Request.Context(), userID, id); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// SyncAccount 同步广告账户
// POST /api/v1/facebook/accounts/:id/sync
func (h *FacebookHandler) SyncAccount(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的账户ID")
	if !ok {
		return
	}

	adAccounts, err := h.facebookService.SyncAccount(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "同步完成", adAccounts)
}

// LiveCampaigns 从 Graph 实时读取广告系列
// GET /api/v1/facebook/ad-accounts/:id/campaigns
func (h *FacebookHandler) LiveCampaigns(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告账户ID")
	if !ok {
		return
	}

	campaigns, err := h.facebookService.LiveCampaigns(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, campaigns)
}

// LiveInsights 从 Graph 实时读取洞察
// GET /api/v1/facebook/ad-accounts/:id/insights
func (h *FacebookHandler) LiveInsights(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告账户ID")
	if !ok {
		return
	}

	var q dto.LiveInsightQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	rows, err := h.facebookService.LiveInsights(c.Request.Context(), userID, id, &q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, rows)
}

// SearchAdLibrary 搜索广告库
// GET /api/v1/facebook/ad-library/search
func (h *FacebookHandler) SearchAdLibrary(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var q dto.AdLibrarySearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	ads, err := h.facebookService.SearchAdLibrary(c.Request.Context(), userID, &q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, ads)
}

// ArchivedAd 广告库中的单条广告
// GET /api/v1/facebook/ad-library/ads/:id
func (h *FacebookHandler) ArchivedAd(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	ad, err := h.facebookService.GetArchivedAd(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, ad)
}

// CreateSyncJob 创建异步同步任务
// POST /api/v1/facebook/ad-accounts/:id/sync-jobs
func (h *FacebookHandler) CreateSyncJob(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告账户ID")
	if !ok {
		return
	}

	var req dto.CreateSyncJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	job, err := h.facebookService.CreateSyncJob(c.Request.Context(), userID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Accepted(c, job)
}

// GetSyncJob 同步任务状态
// GET /api/v1/facebook/sync-jobs/:id
func (h *FacebookHandler) GetSyncJob(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的任务ID")
	if !ok {
		return
	}

	job, err := h.facebookService.GetSyncJob(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, job)
}
