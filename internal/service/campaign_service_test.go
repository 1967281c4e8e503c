package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/apperr"
	"github.com/qs3c/fbads_go_server/internal/testutil"
)

type campaignFixture struct {
	svc   *CampaignService
	db    *gorm.DB
	graph *fakeGraph
	user  *model.User
	ad    *model.AdAccount
}

func setupCampaigns(t *testing.T) *campaignFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	graph := newFakeGraph(t)
	r := newRepos(db)
	user := testutil.TestUser(t, db)
	ad := testutil.TestAdAccount(t, db, testutil.TestFacebookAccount(t, db, user.ID).ID)
	return &campaignFixture{
		svc:   NewCampaignService(r.fb, r.camp, r.insight, graph.client()),
		db:    db,
		graph: graph,
		user:  user,
		ad:    ad,
	}
}

func TestCampaignService_List(t *testing.T) {
	f := setupCampaigns(t)
	ctx := context.Background()

	other := testutil.TestAdAccount(t, f.db, testutil.TestFacebookAccount(t, f.db, f.user.ID).ID)
	testutil.TestCampaign(t, f.db, f.ad.ID)
	testutil.TestCampaign(t, f.db, f.ad.ID, func(c *model.Campaign) { c.Status = model.CampaignStatusActive })
	testutil.TestCampaign(t, f.db, other.ID)

	strangerAd := testutil.TestAdAccount(t, f.db, testutil.TestFacebookAccount(t, f.db, testutil.TestUser(t, f.db).ID).ID)
	testutil.TestCampaign(t, f.db, strangerAd.ID)

	items, total, err := f.svc.List(ctx, f.user.ID, &dto.CampaignListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 3)

	items, total, err = f.svc.List(ctx, f.user.ID, &dto.CampaignListQuery{AdAccountID: f.ad.ID, Status: model.CampaignStatusActive})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, model.CampaignStatusActive, items[0].Status)

	_, _, err = f.svc.List(ctx, f.user.ID, &dto.CampaignListQuery{AdAccountID: strangerAd.ID})
	assert.ErrorIs(t, err, ErrAdAccountNotFound)
}

func TestCampaignService_Create(t *testing.T) {
	f := setupCampaigns(t)
	ctx := context.Background()

	f.graph.on("POST", "/"+f.ad.FacebookAdAccountID+"/campaigns", `{"id":"238400991"}`)

	budget := 50.0
	campaign, err := f.svc.Create(ctx, f.user.ID, &dto.CreateCampaignRequest{
		AdAccountID: f.ad.ID,
		Name:        "Launch",
		Objective:   "OUTCOME_TRAFFIC",
		DailyBudget: &budget,
	})
	require.NoError(t, err)
	assert.Equal(t, "238400991", campaign.FacebookCampaignID)
	assert.Equal(t, model.CampaignStatusPaused, campaign.Status)
	assert.Equal(t, model.BuyingTypeAuction, campaign.BuyingType)

	calls := f.graph.Calls("POST", "/"+f.ad.FacebookAdAccountID+"/campaigns")
	require.Len(t, calls, 1)
	assert.Equal(t, "PAUSED", calls[0].Params.Get("status"))
	assert.Equal(t, "AUCTION", calls[0].Params.Get("buying_type"))
	assert.Equal(t, "5000", calls[0].Params.Get("daily_budget"))
	assert.Equal(t, "[]", calls[0].Params.Get("special_ad_categories"))
	assert.Equal(t, "EAAB-test-token", calls[0].Params.Get("access_token"))

	stored, err := f.svc.Get(ctx, f.user.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "Launch", stored.Name)
}

func TestCampaignService_Create_GraphFailure(t *testing.T) {
	f := setupCampaigns(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.user.ID, &dto.CreateCampaignRequest{
		AdAccountID: f.ad.ID,
		Name:        "Launch",
		Objective:   "OUTCOME_TRAFFIC",
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	var count int64
	f.db.Model(&model.Campaign{}).Count(&count)
	assert.Zero(t, count)
}

func TestCampaignService_Create_NotOwned(t *testing.T) {
	f := setupCampaigns(t)
	stranger := testutil.TestUser(t, f.db)

	_, err := f.svc.Create(context.Background(), stranger.ID, &dto.CreateCampaignRequest{
		AdAccountID: f.ad.ID,
		Name:        "Launch",
		Objective:   "OUTCOME_TRAFFIC",
	})
	assert.ErrorIs(t, err, ErrAdAccountNotFound)
	assert.Zero(t, f.graph.CallCount())
}

func TestCampaignService_Update(t *testing.T) {
	f := setupCampaigns(t)
	ctx := context.Background()
	campaign := testutil.TestCampaign(t, f.db, f.ad.ID)

	f.graph.on("POST", "/"+campaign.FacebookCampaignID, `{"success":true}`)

	name, status := "Renamed", model.CampaignStatusActive
	updated, err := f.svc.Update(ctx, f.user.ID, campaign.ID, &dto.UpdateCampaignRequest{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	calls := f.graph.Calls("POST", "/"+campaign.FacebookCampaignID)
	require.Len(t, calls, 1)
	assert.Equal(t, "Renamed", calls[0].Params.Get("name"))
	assert.Equal(t, "ACTIVE", calls[0].Params.Get("status"))
	assert.Empty(t, calls[0].Params.Get("special_ad_categories"))

	stored, err := f.svc.Get(ctx, f.user.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, stored.Status)

	// 空更新不调用 Graph
	_, err = f.svc.Update(ctx, f.user.ID, campaign.ID, &dto.UpdateCampaignRequest{})
	require.NoError(t, err)
	assert.Len(t, f.graph.Calls("POST", "/"+campaign.FacebookCampaignID), 1)
}

func TestCampaignService_Update_GraphFailureKeepsLocal(t *testing.T) {
	f := setupCampaigns(t)
	ctx := context.Background()
	campaign := testutil.TestCampaign(t, f.db, f.ad.ID)

	name := "Renamed"
	_, err := f.svc.Update(ctx, f.user.ID, campaign.ID, &dto.UpdateCampaignRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

	stored, err := f.svc.Get(ctx, f.user.ID, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, campaign.Name, stored.Name)
}

func TestCampaignService_Delete(t *testing.T) {
	f := setupCampaigns(t)
	ctx := context.Background()
	campaign := testutil.TestCampaign(t, f.db, f.ad.ID)
	require.NoError(t, newRepos(f.db).camp.SaveAdSet(ctx, &model.AdSet{CampaignID: campaign.ID, FacebookAdSetID: "as-1"}))

	stranger := testutil.TestUser(t, f.db)
	assert.ErrorIs(t, f.svc.Delete(ctx, stranger.ID, campaign.ID), ErrCampaignNotFound)

	f.graph.on("DELETE", "/"+campaign.FacebookCampaignID, `{"success":true}`)
	require.NoError(t, f.svc.Delete(ctx, f.user.ID, campaign.ID))

	_, err := f.svc.Get(ctx, f.user.ID, campaign.ID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
	var sets int64
	f.db.Model(&model.AdSet{}).Count(&sets)
	assert.Zero(t, sets)
}

func TestCampaignService_AdSetsAndInsights(t *testing.T) {
	f := setupCampaigns(t)
	f.svc.now = func() time.Time { return time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	campaign := testutil.TestCampaign(t, f.db, f.ad.ID)

	require.NoError(t, newRepos(f.db).camp.SaveAdSet(ctx, &model.AdSet{CampaignID: campaign.ID, FacebookAdSetID: "as-1", Name: "Set"}))
	sets, err := f.svc.AdSets(ctx, f.user.ID, campaign.ID)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "Set", sets[0].Name)

	day := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	testutil.TestInsight(t, f.db, f.ad.ID, model.ObjectCampaign, campaign.FacebookCampaignID, day, 300, 9, 6)
	testutil.TestInsight(t, f.db, f.ad.ID, model.ObjectAccount, f.ad.FacebookAdAccountID, day, 900, 20, 15)

	rows, err := f.svc.Insights(ctx, f.user.ID, campaign.ID, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(300), rows[0].Impressions)

	stranger := testutil.TestUser(t, f.db)
	_, err = f.svc.AdSets(ctx, stranger.ID, campaign.ID)
	assert.ErrorIs(t, err, ErrCampaignNotFound)
}
