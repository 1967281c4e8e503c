package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

type CampaignHandler struct {
	campaignService *service.CampaignService
}

func NewCampaignHandler(campaignService *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
	}
}

// List 广告系列列表
// GET /api/v1/campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var q dto.CampaignListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	q.Normalize()

	items, total, err := h.campaignService.List(c.Request.Context(), userID, &q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessPage(c, total, q.Page, q.PageSize, items)
}

// Get 广告系列详情
// GET /api/v1/campaigns/:id
func (h *CampaignHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告系列ID")
	if !ok {
		return
	}

	campaign, err := h.campaignService.Get(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, campaign)
}

// Create 在 Facebook 创建广告系列并保存
// POST /api/v1/campaigns
func (h *CampaignHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	campaign, err := h.campaignService.Create(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, campaign)
}

// Update 更新广告系列
// PUT /api/v1/campaigns/:id
func (h *CampaignHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告系列ID")
	if !ok {
		return
	}

	var req dto.UpdateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	campaign, err := h.campaignService.Update(c.Request.Context(), userID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", campaign)
}

// Delete 删除广告系列
// DELETE /api/v1/campaigns/:id
func (h *CampaignHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告系列ID")
	if !ok {
		return
	}

	if err := h.campaignService.Delete(c.Request.Context(), userID, id); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// AdSets 广告组
// GET /api/v1/campaigns/:id/adsets
func (h *CampaignHandler) AdSets(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告系列ID")
	if !ok {
		return
	}

	sets, err := h.campaignService.AdSets(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, sets)
}

// Insights 广告系列层级洞察
// GET /api/v1/campaigns/:id/insights
func (h *CampaignHandler) Insights(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的广告系列ID")
	if !ok {
		return
	}

	var q dateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	rows, err := h.campaignService.Insights(c.Request.Context(), userID, id, q.StartDate, q.EndDate)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, rows)
}
