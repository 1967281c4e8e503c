package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

func adLibraryRoutes(env *testEnv, graph *graphStub, userID int64) *gin.Engine {
	h := NewAdLibraryHandler(service.NewAdLibraryService(env.Lib, env.FB, graph.client()))

	router := gin.New()
	router.Use(mockAuth(userID))
	router.GET("/ad-library/collections", h.ListCollections)
	router.POST("/ad-library/collections", h.CreateCollection)
	router.GET("/ad-library/collections/:id", h.GetCollection)
	router.PUT("/ad-library/collections/:id", h.UpdateCollection)
	router.DELETE("/ad-library/collections/:id", h.DeleteCollection)
	router.POST("/ad-library/collections/:id/ads", h.AddAd)
	router.DELETE("/ad-library/collections/:id/ads/:adId", h.RemoveAd)
	return router
}

func TestAdLibraryHandler_Collections(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.TestUser(t, env.DB)
	other := testutil.TestUser(t, env.DB)
	graph := newGraphStub(t)
	router := adLibraryRoutes(env, graph, owner.ID)

	w := request(router, http.MethodPost, "/ad-library/collections", dto.CreateCollectionRequest{Name: "Competitors"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := int64(dataMap(t, parseResponse(t, w))["id"].(float64))

	w = request(router, http.MethodPost, "/ad-library/collections", map[string]interface{}{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = request(router, http.MethodGet, "/ad-library/collections", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataList(t, parseResponse(t, w)), 1)

	path := fmt.Sprintf("/ad-library/collections/%d", id)
	w = request(adLibraryRoutes(env, graph, other.ID), http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(router, http.MethodPut, path, map[string]interface{}{"is_public": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, dataMap(t, parseResponse(t, w))["is_public"])

	w = request(adLibraryRoutes(env, graph, other.ID), http.MethodGet, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(adLibraryRoutes(env, graph, other.ID), http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(router, http.MethodGet, "/ad-library/collections/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdLibraryHandler_AddAndRemoveAd(t *testing.T) {
	env := newTestEnv(t)
	owner := testutil.TestUser(t, env.DB)
	graph := newGraphStub(t)
	router := adLibraryRoutes(env, graph, owner.ID)
	collection := testutil.TestCollection(t, env.DB, owner.ID, false)
	base := fmt.Sprintf("/ad-library/collections/%d/ads", collection.ID)

	// 未连接 Facebook 时只记录广告 ID
	w := request(router, http.MethodPost, base, dto.AddCollectionAdRequest{FacebookAdID: "778899", Notes: "hook"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := dataMap(t, parseResponse(t, w))["ad_library_item"].(map[string]interface{})
	assert.Equal(t, "778899", item["facebook_ad_id"])
	assert.Zero(t, graph.count())

	w = request(router, http.MethodPost, base, dto.AddCollectionAdRequest{FacebookAdID: "778899"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.CodeDuplicateAction, parseResponse(t, w).Code)

	w = request(router, http.MethodGet, fmt.Sprintf("/ad-library/collections/%d", collection.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, dataMap(t, parseResponse(t, w))["items"], 1)

	w = request(router, http.MethodDelete, base+"/778899", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(router, http.MethodDelete, base+"/778899", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.CodeResourceNotFound, parseResponse(t, w).Code)
}
