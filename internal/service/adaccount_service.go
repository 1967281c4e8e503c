package service

import (
	"context"
	"time"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// AdAccountService 本地广告账户的查询与维护
type AdAccountService struct {
	fbRepo       *repository.FacebookRepository
	campaignRepo *repository.CampaignRepository
	insightRepo  *repository.InsightRepository
	now          func() time.Time
}

func NewAdAccountService(
	fbRepo *repository.FacebookRepository,
	campaignRepo *repository.CampaignRepository,
	insightRepo *repository.InsightRepository,
) *AdAccountService {
	return &AdAccountService{
		fbRepo:       fbRepo,
		campaignRepo: campaignRepo,
		insightRepo:  insightRepo,
		now:          time.Now,
	}
}

// List 当前用户的全部广告账户
func (s *AdAccountService) List(ctx context.Context, userID int64) ([]*model.AdAccount, error) {
	return s.fbRepo.ListAdAccountsByUser(ctx, userID)
}

func (s *AdAccountService) Get(ctx context.Context, userID, id int64) (*model.AdAccount, error) {
	return ownedAdAccount(ctx, s.fbRepo, id, userID)
}

// Update 目前只允许修改名称
func (s *AdAccountService) Update(ctx context.Context, userID, id int64, req *dto.UpdateAdAccountRequest) (*model.AdAccount, error) {
	adAccount, err := ownedAdAccount(ctx, s.fbRepo, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.fbRepo.UpdateAdAccountFields(ctx, id, map[string]interface{}{"name": req.Name}); err != nil {
		return nil, err
	}
	adAccount.Name = req.Name
	return adAccount, nil
}

// Campaigns 广告账户下已同步的广告系列
func (s *AdAccountService) Campaigns(ctx context.Context, userID, id int64, page dto.PageQuery) ([]*model.Campaign, int64, error) {
	if _, err := ownedAdAccount(ctx, s.fbRepo, id, userID); err != nil {
		return nil, 0, err
	}
	page.Normalize()
	return s.campaignRepo.List(ctx, []int64{id}, "", page.Offset(), page.PageSize)
}

// Insights 账户层级的按天洞察，默认最近 30 天
func (s *AdAccountService) Insights(ctx context.Context, userID, id int64, startDate, endDate string) ([]*model.Insight, error) {
	since, until, err := dateRange(startDate, endDate, s.now())
	if err != nil {
		return nil, err
	}
	adAccount, err := ownedAdAccount(ctx, s.fbRepo, id, userID)
	if err != nil {
		return nil, err
	}
	return s.insightRepo.Find(ctx, repository.InsightFilter{
		AdAccountIDs: []int64{adAccount.ID},
		ObjectType:   model.ObjectAccount,
		ObjectID:     adAccount.FacebookAdAccountID,
		Since:        since,
		Until:        until,
	})
}

// Users 最近一次同步得到的账户成员
func (s *AdAccountService) Users(ctx context.Context, userID, id int64) ([]*model.AdAccountUser, error) {
	if _, err := ownedAdAccount(ctx, s.fbRepo, id, userID); err != nil {
		return nil, err
	}
	return s.fbRepo.ListAdAccountUsers(ctx, id)
}
