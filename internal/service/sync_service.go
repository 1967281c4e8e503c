package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/pkg/pubsub"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// 同步洞察时拉取的层级
var insightLevels = []string{"account", "campaign"}

// SyncService 从 Graph 拉取数据写入本地，供 worker 调用
type SyncService struct {
	db           *gorm.DB
	fbRepo       *repository.FacebookRepository
	campaignRepo *repository.CampaignRepository
	insightRepo  *repository.InsightRepository
	graph        *facebook.Client
	now          func() time.Time
}

func NewSyncService(
	db *gorm.DB,
	fbRepo *repository.FacebookRepository,
	campaignRepo *repository.CampaignRepository,
	insightRepo *repository.InsightRepository,
	graph *facebook.Client,
) *SyncService {
	return &SyncService{
		db:           db,
		fbRepo:       fbRepo,
		campaignRepo: campaignRepo,
		insightRepo:  insightRepo,
		graph:        graph,
		now:          time.Now,
	}
}

// SyncStep 同步阶段回调
type SyncStep func(step string)

// Sync 按任务类型执行同步，返回写入条数
func (s *SyncService) Sync(ctx context.Context, job *model.SyncJob, onStep SyncStep) (int, error) {
	if onStep == nil {
		onStep = func(string) {}
	}

	adAccount, err := s.fbRepo.GetAdAccount(ctx, job.AdAccountID)
	if err != nil {
		if isNotFound(err) {
			return 0, ErrAdAccountNotFound
		}
		return 0, err
	}
	token, err := accessToken(adAccount.FacebookAccount, s.now())
	if err != nil {
		return 0, err
	}

	var n int
	switch job.Kind {
	case model.SyncKindCampaigns:
		n, err = s.syncCampaigns(ctx, adAccount, token, onStep)
	case model.SyncKindInsights:
		since, until := s.jobRange(job)
		n, err = s.syncInsights(ctx, adAccount, token, since, until, onStep)
	default:
		return 0, ErrInvalidSyncKind
	}
	if err != nil {
		return 0, err
	}

	syncedAt := s.now()
	if err := s.fbRepo.UpdateAdAccountFields(ctx, adAccount.ID, map[string]interface{}{"last_synced_at": &syncedAt}); err != nil {
		return n, err
	}
	return n, nil
}

func (s *SyncService) jobRange(job *model.SyncJob) (time.Time, time.Time) {
	if job.Since != nil && job.Until != nil {
		return *job.Since, *job.Until
	}
	since, until, _ := dateRange("", "", s.now())
	return since, until
}

// syncCampaigns 拉取广告系列及其广告组后在一个事务中写入
func (s *SyncService) syncCampaigns(ctx context.Context, adAccount *model.AdAccount, token string, onStep SyncStep) (int, error) {
	onStep(pubsub.StepFetching)
	remote, err := s.graph.Campaigns(ctx, token, adAccount.FacebookAdAccountID, 0)
	if err != nil {
		return 0, graphError("facebook.campaigns", err)
	}

	adSets := make(map[string][]facebook.AdSet, len(remote))
	for _, c := range remote {
		sets, err := s.graph.AdSets(ctx, token, c.ID)
		if err != nil {
			log.Warn().Err(err).Str("campaign", c.ID).Msg("failed to fetch ad sets")
			continue
		}
		adSets[c.ID] = sets
	}

	onStep(pubsub.StepSaving)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.campaignRepo.WithTx(tx)
		for _, c := range remote {
			campaign := campaignFromGraph(adAccount.ID, c)
			if err := repo.Save(ctx, campaign); err != nil {
				return err
			}
			for _, a := range adSets[c.ID] {
				if err := repo.SaveAdSet(ctx, adSetFromGraph(campaign.ID, a)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(remote), nil
}

// syncInsights 按天拉取账户级与广告系列级洞察并覆盖写入
func (s *SyncService) syncInsights(ctx context.Context, adAccount *model.AdAccount, token string, since, until time.Time, onStep SyncStep) (int, error) {
	onStep(pubsub.StepFetching)
	var insights []*model.Insight
	for _, level := range insightLevels {
		rows, err := s.graph.Insights(ctx, token, facebook.ActPath(adAccount.FacebookAdAccountID), facebook.InsightParams{
			Since:         since,
			Until:         until,
			TimeIncrement: "1",
			Level:         level,
		})
		if err != nil {
			return 0, graphError("facebook.insights", err)
		}
		for _, r := range rows {
			if insight, ok := insightFromGraph(adAccount, level, r); ok {
				insights = append(insights, insight)
			}
		}
	}

	onStep(pubsub.StepSaving)
	if err := s.insightRepo.Upsert(ctx, insights); err != nil {
		return 0, err
	}
	return len(insights), nil
}
