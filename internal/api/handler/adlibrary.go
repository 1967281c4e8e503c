package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

type AdLibraryHandler struct {
	adLibraryService *service.AdLibraryService
}

func NewAdLibraryHandler(adLibraryService *service.AdLibraryService) *AdLibraryHandler {
	return &AdLibraryHandler{
		adLibraryService: adLibraryService,
	}
}

// ListCollections 我的收藏夹
// GET /api/v1/ad-library/collections
func (h *AdLibraryHandler) ListCollections(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	collections, err := h.adLibraryService.ListCollections(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, collections)
}

// CreateCollection 新建收藏夹
// POST /api/v1/ad-library/collections
func (h *AdLibraryHandler) CreateCollection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	collection, err := h.adLibraryService.CreateCollection(c.Request.Context(), userID, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, collection)
}

// GetCollection 收藏夹详情，本人或公开
// GET /api/v1/ad-library/collections/:id
func (h *AdLibraryHandler) GetCollection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的收藏夹ID")
	if !ok {
		return
	}

	collection, err := h.adLibraryService.GetCollection(c.Request.Context(), userID, id)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, collection)
}

// UpdateCollection 修改收藏夹
// PUT /api/v1/ad-library/collections/:id
func (h *AdLibraryHandler) UpdateCollection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的收藏夹ID")
	if !ok {
		return
	}

	var req dto.UpdateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	collection, err := h.adLibraryService.UpdateCollection(c.Request.Context(), userID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "更新成功", collection)
}

// DeleteCollection 删除收藏夹
// DELETE /api/v1/ad-library/collections/:id
func (h *AdLibraryHandler) DeleteCollection(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的收藏夹ID")
	if !ok {
		return
	}

	if err := h.adLibraryService.DeleteCollection(c.Request.Context(), userID, id); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// AddAd 收藏广告
// POST /api/v1/ad-library/collections/:id/ads
func (h *AdLibraryHandler) AddAd(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的收藏夹ID")
	if !ok {
		return
	}

	var req dto.AddCollectionAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	entry, err := h.adLibraryService.AddAd(c.Request.Context(), userID, id, &req)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Created(c, entry)
}

// RemoveAd 移除收藏的广告，adId 为 Facebook 广告 ID
// DELETE /api/v1/ad-library/collections/:id/ads/:adId
func (h *AdLibraryHandler) RemoveAd(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	id, ok := pathID(c, "id", "无效的收藏夹ID")
	if !ok {
		return
	}

	if err := h.adLibraryService.RemoveAd(c.Request.Context(), userID, id, c.Param("adId")); err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已移除", nil)
}
