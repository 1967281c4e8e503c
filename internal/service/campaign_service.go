package service

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// CampaignService 广告系列管理，写操作先调 Graph 再落库
type CampaignService struct {
	fbRepo       *repository.FacebookRepository
	campaignRepo *repository.CampaignRepository
	insightRepo  *repository.InsightRepository
	graph        *facebook.Client
	now          func() time.Time
}

func NewCampaignService(
	fbRepo *repository.FacebookRepository,
	campaignRepo *repository.CampaignRepository,
	insightRepo *repository.InsightRepository,
	graph *facebook.Client,
) *CampaignService {
	return &CampaignService{
		fbRepo:       fbRepo,
		campaignRepo: campaignRepo,
		insightRepo:  insightRepo,
		graph:        graph,
		now:          time.Now,
	}
}

// List 广告系列列表，ad_account_id 必须属于当前用户
func (s *CampaignService) List(ctx context.Context, userID int64, q *dto.CampaignListQuery) ([]*model.Campaign, int64, error) {
	q.Normalize()

	ids, err := s.fbRepo.AdAccountIDsByUser(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if q.AdAccountID != 0 {
		if !slices.Contains(ids, q.AdAccountID) {
			return nil, 0, ErrAdAccountNotFound
		}
		ids = []int64{q.AdAccountID}
	}

	return s.campaignRepo.List(ctx, ids, q.Status, q.Offset(), q.PageSize)
}

func (s *CampaignService) Get(ctx context.Context, userID, id int64) (*model.Campaign, error) {
	return s.owned(ctx, userID, id)
}

// Create 先在 Facebook 创建，成功后再落库
func (s *CampaignService) Create(ctx context.Context, userID int64, req *dto.CreateCampaignRequest) (*model.Campaign, error) {
	adAccount, err := ownedAdAccount(ctx, s.fbRepo, req.AdAccountID, userID)
	if err != nil {
		return nil, err
	}
	token, err := accessToken(adAccount.FacebookAccount, s.now())
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = model.CampaignStatusPaused
	}
	cats := req.SpecialAdCategories
	if cats == nil {
		cats = []string{}
	}

	fbID, err := s.graph.CreateCampaign(ctx, token, adAccount.FacebookAdAccountID, facebook.CampaignInput{
		Name:                req.Name,
		Objective:           req.Objective,
		Status:              status,
		BuyingType:          model.BuyingTypeAuction,
		SpecialAdCategories: cats,
		DailyBudget:         req.DailyBudget,
		LifetimeBudget:      req.LifetimeBudget,
		SpendCap:            req.SpendCap,
		StartTime:           req.StartTime,
		StopTime:            req.EndTime,
	})
	if err != nil {
		return nil, graphError("facebook.create_campaign", err)
	}

	campaign := &model.Campaign{
		AdAccountID:         adAccount.ID,
		FacebookCampaignID:  fbID,
		Name:                req.Name,
		Objective:           req.Objective,
		Status:              status,
		BuyingType:          model.BuyingTypeAuction,
		SpecialAdCategories: model.StringArray(cats),
		DailyBudget:         req.DailyBudget,
		LifetimeBudget:      req.LifetimeBudget,
		SpendCap:            req.SpendCap,
		StartTime:           req.StartTime,
		EndTime:             req.EndTime,
	}
	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		// Facebook 上已创建，下次同步会补回本地记录
		log.Error().Err(err).Str("facebook_campaign_id", fbID).Msg("failed to store created campaign")
		return nil, err
	}

	log.Info().Int64("campaign_id", campaign.ID).Str("facebook_campaign_id", fbID).Msg("campaign created")
	return campaign, nil
}

// Update 只提交有变化的字段
func (s *CampaignService) Update(ctx context.Context, userID, id int64, req *dto.UpdateCampaignRequest) (*model.Campaign, error) {
	campaign, token, err := s.ownedWithToken(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	in := facebook.CampaignInput{
		DailyBudget:    req.DailyBudget,
		LifetimeBudget: req.LifetimeBudget,
		SpendCap:       req.SpendCap,
		StartTime:      req.StartTime,
		StopTime:       req.EndTime,
	}
	fields := map[string]interface{}{}
	if req.Name != nil {
		in.Name = *req.Name
		fields["name"] = *req.Name
		campaign.Name = *req.Name
	}
	if req.Status != nil {
		in.Status = *req.Status
		fields["status"] = *req.Status
		campaign.Status = *req.Status
	}
	if req.DailyBudget != nil {
		fields["daily_budget"] = *req.DailyBudget
		campaign.DailyBudget = req.DailyBudget
	}
	if req.LifetimeBudget != nil {
		fields["lifetime_budget"] = *req.LifetimeBudget
		campaign.LifetimeBudget = req.LifetimeBudget
	}
	if req.SpendCap != nil {
		fields["spend_cap"] = *req.SpendCap
		campaign.SpendCap = req.SpendCap
	}
	if req.StartTime != nil {
		fields["start_time"] = req.StartTime
		campaign.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		fields["end_time"] = req.EndTime
		campaign.EndTime = req.EndTime
	}
	if len(fields) == 0 {
		return campaign, nil
	}

	if err := s.graph.UpdateCampaign(ctx, token, campaign.FacebookCampaignID, in); err != nil {
		return nil, graphError("facebook.update_campaign", err)
	}
	if err := s.campaignRepo.UpdateFields(ctx, campaign.ID, fields); err != nil {
		return nil, err
	}
	return campaign, nil
}

// Delete 先在 Facebook 删除，再删本地记录
func (s *CampaignService) Delete(ctx context.Context, userID, id int64) error {
	campaign, token, err := s.ownedWithToken(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.graph.DeleteCampaign(ctx, token, campaign.FacebookCampaignID); err != nil {
		return graphError("facebook.delete_campaign", err)
	}
	if err := s.campaignRepo.Delete(ctx, campaign.ID); err != nil {
		return err
	}

	log.Info().Int64("campaign_id", campaign.ID).Int64("user_id", userID).Msg("campaign deleted")
	return nil
}

func (s *CampaignService) AdSets(ctx context.Context, userID, id int64) ([]*model.AdSet, error) {
	campaign, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.campaignRepo.ListAdSets(ctx, campaign.ID)
}

// Insights 广告系列层级的按天洞察
func (s *CampaignService) Insights(ctx context.Context, userID, id int64, startDate, endDate string) ([]*model.Insight, error) {
	since, until, err := dateRange(startDate, endDate, s.now())
	if err != nil {
		return nil, err
	}
	campaign, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return s.insightRepo.Find(ctx, repository.InsightFilter{
		AdAccountIDs: []int64{campaign.AdAccountID},
		ObjectType:   model.ObjectCampaign,
		ObjectID:     campaign.FacebookCampaignID,
		Since:        since,
		Until:        until,
	})
}

func (s *CampaignService) owned(ctx context.Context, userID, id int64) (*model.Campaign, error) {
	return ownedCampaign(ctx, s.campaignRepo, id, userID)
}

func (s *CampaignService) ownedWithToken(ctx context.Context, userID, id int64) (*model.Campaign, string, error) {
	campaign, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	adAccount, err := ownedAdAccount(ctx, s.fbRepo, campaign.AdAccountID, userID)
	if err != nil {
		return nil, "", err
	}
	token, err := accessToken(adAccount.FacebookAccount, s.now())
	if err != nil {
		return nil, "", err
	}
	return campaign, token, nil
}

// ownedCampaign 广告系列必须属于该用户，否则视为不存在
func ownedCampaign(ctx context.Context, campaignRepo *repository.CampaignRepository, id, userID int64) (*model.Campaign, error) {
	campaign, err := campaignRepo.GetForUser(ctx, id, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrCampaignNotFound
		}
		return nil, err
	}
	return campaign, nil
}
