package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

type InsightHandler struct {
	insightService *service.InsightService
}

func NewInsightHandler(insightService *service.InsightService) *InsightHandler {
	return &InsightHandler{
		insightService: insightService,
	}
}

// List 已同步的洞察数据
// GET /api/v1/insights
func (h *InsightHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var q dto.InsightQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	rows, err := h.insightService.List(c.Request.Context(), userID, &q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, rows)
}

// Performance 汇总指标
// GET /api/v1/insights/performance
func (h *InsightHandler) Performance(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var q dto.InsightQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	summary, err := h.insightService.Performance(c.Request.Context(), userID, &q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, summary)
}

// Demographics 年龄性别细分
// GET /api/v1/insights/demographics
func (h *InsightHandler) Demographics(c *gin.Context) {
	h.breakdown(c, facebook.BreakdownDemographics)
}

// Placements 版位细分
// GET /api/v1/insights/placements
func (h *InsightHandler) Placements(c *gin.Context) {
	h.breakdown(c, facebook.BreakdownPlacements)
}

// Devices 设备细分
// GET /api/v1/insights/devices
func (h *InsightHandler) Devices(c *gin.Context) {
	h.breakdown(c, facebook.BreakdownDevices)
}

func (h *InsightHandler) breakdown(c *gin.Context, breakdowns []string) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var q dto.BreakdownQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	rows, err := h.insightService.Breakdown(c.Request.Context(), userID, breakdowns, &q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, rows)
}

// Export 导出 CSV，返回临时下载地址
// POST /api/v1/insights/export
func (h *InsightHandler) Export(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var q dto.InsightQuery
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&q); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	} else if err := c.ShouldBindQuery(&q); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.insightService.Export(c.Request.Context(), userID, &q)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "导出成功", resp)
}
