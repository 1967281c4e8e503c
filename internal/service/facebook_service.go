package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/pkg/oauth"
	"github.com/qs3c/fbads_go_server/internal/pkg/queue"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

const staleSyncBatch = 100

// JobQueue 同步任务队列，由 queue.Queue 实现
type JobQueue interface {
	Push(ctx context.Context, msg *queue.JobMessage) error
}

type FacebookService struct {
	db         *gorm.DB
	fbRepo     *repository.FacebookRepository
	jobRepo    *repository.SyncJobRepository
	graph      *facebook.Client
	oauth      *oauth.FacebookOAuth
	states     *oauth.StateStore
	queue      JobQueue
	staleAfter time.Duration
	now        func() time.Time
}

func NewFacebookService(
	db *gorm.DB,
	fbRepo *repository.FacebookRepository,
	jobRepo *repository.SyncJobRepository,
	graph *facebook.Client,
	fbOAuth *oauth.FacebookOAuth,
	states *oauth.StateStore,
	jobQueue JobQueue,
	cfg *config.Config,
) *FacebookService {
	hours := cfg.Cron.InsightSyncHours
	if hours <= 0 {
		hours = 24
	}
	return &FacebookService{
		db:         db,
		fbRepo:     fbRepo,
		jobRepo:    jobRepo,
		graph:      graph,
		oauth:      fbOAuth,
		states:     states,
		queue:      jobQueue,
		staleAfter: time.Duration(hours) * time.Hour,
		now:        time.Now,
	}
}

// AuthURL 生成授权地址，state 绑定当前用户
func (s *FacebookService) AuthURL(ctx context.Context, userID int64) (*dto.AuthURLResponse, error) {
	if !s.oauth.Configured() {
		return nil, ErrFacebookNotConfigured
	}

	state, err := s.states.GenerateState(ctx, oauth.StateData{UserID: userID})
	if err != nil {
		return nil, err
	}
	return &dto.AuthURLResponse{URL: s.oauth.GetAuthURL(state), State: state}, nil
}

// Callback 校验 state，换取长期令牌并保存账户及广告账户
func (s *FacebookService) Callback(ctx context.Context, userID int64, req *dto.FacebookCallbackRequest) (*model.FacebookAccount, error) {
	if !s.oauth.Configured() {
		return nil, ErrFacebookNotConfigured
	}

	data, err := s.states.ValidateState(ctx, req.State)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidState) || req.State == "" {
			return nil, ErrInvalidOAuthState
		}
		return nil, err
	}
	if data.UserID != userID {
		return nil, ErrInvalidOAuthState
	}

	short, err := s.oauth.Exchange(ctx, req.Code)
	if err != nil {
		return nil, graphError("facebook.oauth_exchange", err)
	}
	long, err := s.oauth.ExchangeLongLived(ctx, short.AccessToken)
	if err != nil {
		return nil, graphError("facebook.long_lived_token", err)
	}

	me, err := s.graph.Me(ctx, long.AccessToken)
	if err != nil {
		return nil, graphError("facebook.me", err)
	}
	adAccounts, err := s.graph.AdAccounts(ctx, long.AccessToken)
	if err != nil {
		return nil, graphError("facebook.ad_accounts", err)
	}

	expiresAt := long.ExpiresAt
	account := &model.FacebookAccount{
		UserID:            userID,
		FacebookUserID:    me.ID,
		AccessToken:       long.AccessToken,
		TokenExpiresAt:    &expiresAt,
		Name:              me.Name,
		Email:             me.Email,
		ProfilePictureURL: me.Picture.Data.URL,
	}

	now := s.now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.fbRepo.WithTx(tx)
		if err := repo.SaveAccount(ctx, account); err != nil {
			return err
		}
		account.AdAccounts = make([]model.AdAccount, 0, len(adAccounts))
		for _, a := range adAccounts {
			ad := adAccountFromGraph(account.ID, a, now)
			if err := repo.SaveAdAccount(ctx, ad); err != nil {
				return err
			}
			account.AdAccounts = append(account.AdAccounts, *ad)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Int64("user_id", userID).
		Str("facebook_user_id", me.ID).
		Int("ad_accounts", len(adAccounts)).
		Msg("facebook account connected")
	return account, nil
}

// Accounts 用户的 Facebook 账户及广告账户
func (s *FacebookService) Accounts(ctx context.Context, userID int64) ([]*model.FacebookAccount, error) {
	return s.fbRepo.ListAccountsByUser(ctx, userID)
}

// DeleteAccount 删除账户，非本人账户返回 404
func (s *FacebookService) DeleteAccount(ctx context.Context, userID, id int64) error {
	if _, err := s.ownedAccount(ctx, userID, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.fbRepo.WithTx(tx).DeleteAccount(ctx, id)
	})
}

// SyncAccount 同步拉取广告账户及成员
func (s *FacebookService) SyncAccount(ctx context.Context, userID, id int64) ([]*model.AdAccount, error) {
	account, err := s.ownedAccount(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	token, err := accessToken(account, now)
	if err != nil {
		return nil, err
	}

	remote, err := s.graph.AdAccounts(ctx, token)
	if err != nil {
		return nil, graphError("facebook.ad_accounts", err)
	}

	members := make(map[string][]*model.AdAccountUser, len(remote))
	for _, a := range remote {
		users, err := s.graph.AdAccountUsers(ctx, token, a.ID)
		if err != nil {
			log.Warn().Err(err).Str("ad_account", a.ID).Msg("failed to fetch ad account users")
			continue
		}
		members[facebook.ActPath(a.ID)] = adAccountUsersFromGraph(users)
	}

	saved := make([]*model.AdAccount, 0, len(remote))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.fbRepo.WithTx(tx)
		for _, a := range remote {
			ad := adAccountFromGraph(account.ID, a, now)
			if err := repo.SaveAdAccount(ctx, ad); err != nil {
				return err
			}
			if users, ok := members[ad.FacebookAdAccountID]; ok {
				if err := repo.ReplaceAdAccountUsers(ctx, ad.ID, users); err != nil {
					return err
				}
			}
			saved = append(saved, ad)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// LiveCampaigns 直接从 Graph 读取广告系列
func (s *FacebookService) LiveCampaigns(ctx context.Context, userID, adAccountID int64) ([]facebook.Campaign, error) {
	adAccount, token, err := s.adAccountToken(ctx, userID, adAccountID)
	if err != nil {
		return nil, err
	}
	campaigns, err := s.graph.Campaigns(ctx, token, adAccount.FacebookAdAccountID, liveCampaignLimit)
	if err != nil {
		return nil, graphError("facebook.campaigns", err)
	}
	return campaigns, nil
}

// LiveInsights 直接从 Graph 读取广告账户洞察
func (s *FacebookService) LiveInsights(ctx context.Context, userID, adAccountID int64, q *dto.LiveInsightQuery) ([]facebook.InsightRow, error) {
	since, until, err := dateRange(q.StartDate, q.EndDate, s.now())
	if err != nil {
		return nil, err
	}
	adAccount, token, err := s.adAccountToken(ctx, userID, adAccountID)
	if err != nil {
		return nil, err
	}

	rows, err := s.graph.Insights(ctx, token, facebook.ActPath(adAccount.FacebookAdAccountID), facebook.InsightParams{
		Since:         since,
		Until:         until,
		TimeIncrement: q.TimeIncrement,
		Level:         q.Level,
	})
	if err != nil {
		return nil, graphError("facebook.insights", err)
	}
	return rows, nil
}

// SearchAdLibrary 搜索广告库，需要有效令牌
func (s *FacebookService) SearchAdLibrary(ctx context.Context, userID int64, q *dto.AdLibrarySearchQuery) ([]facebook.ArchivedAd, error) {
	token, err := s.userToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := facebook.AdLibraryQuery{
		SearchTerms: q.Query,
		AdType:      q.AdType,
		Limit:       q.Limit,
	}
	if q.Country != "" {
		query.Countries = []string{strings.ToUpper(q.Country)}
	}
	if q.DateRange != "" {
		lo, hi, ok := strings.Cut(q.DateRange, ",")
		if !ok {
			return nil, ErrInvalidDateRange
		}
		query.DateMin, query.DateMax = strings.TrimSpace(lo), strings.TrimSpace(hi)
	}

	ads, err := s.graph.SearchAdLibrary(ctx, token, query)
	if err != nil {
		return nil, graphError("facebook.ads_archive", err)
	}
	return ads, nil
}

// GetArchivedAd 广告库单条广告
func (s *FacebookService) GetArchivedAd(ctx context.Context, userID int64, adID string) (*facebook.ArchivedAd, error) {
	token, err := s.userToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	ad, err := s.graph.ArchivedAd(ctx, token, adID)
	if err != nil {
		return nil, graphError("facebook.archived_ad", err)
	}
	return ad, nil
}

// CreateSyncJob 创建异步同步任务并入队
func (s *FacebookService) CreateSyncJob(ctx context.Context, userID, adAccountID int64, req *dto.CreateSyncJobRequest) (*model.SyncJob, error) {
	adAccount, err := ownedAdAccount(ctx, s.fbRepo, adAccountID, userID)
	if err != nil {
		return nil, err
	}
	if _, err := accessToken(adAccount.FacebookAccount, s.now()); err != nil {
		return nil, err
	}

	job := &model.SyncJob{
		UserID:      userID,
		AdAccountID: adAccount.ID,
		Kind:        req.Kind,
		Status:      model.JobStatusPending,
	}
	if req.Kind == model.SyncKindInsights {
		since, until, err := dateRange(req.StartDate, req.EndDate, s.now())
		if err != nil {
			return nil, err
		}
		job.Since, job.Until = &since, &until
	}

	if err := s.enqueue(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetSyncJob 本人的同步任务
func (s *FacebookService) GetSyncJob(ctx context.Context, userID, id int64) (*model.SyncJob, error) {
	job, err := s.jobRepo.GetForUser(ctx, id, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSyncJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// EnqueueStaleInsightSyncs 为长时间未同步的广告账户入队洞察同步任务，返回入队数量
func (s *FacebookService) EnqueueStaleInsightSyncs(ctx context.Context) (int, error) {
	now := s.now()
	adAccounts, err := s.fbRepo.ListStaleAdAccounts(ctx, now.Add(-s.staleAfter), staleSyncBatch)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, ad := range adAccounts {
		if ad.FacebookAccount == nil || !ad.FacebookAccount.TokenValid(now) {
			continue
		}
		since, until, _ := dateRange("", "", now)
		job := &model.SyncJob{
			UserID:      ad.FacebookAccount.UserID,
			AdAccountID: ad.ID,
			Kind:        model.SyncKindInsights,
			Status:      model.JobStatusPending,
			Since:       &since,
			Until:       &until,
		}
		if err := s.enqueue(ctx, job); err != nil {
			if errors.Is(err, ErrSyncJobRunning) {
				continue
			}
			log.Error().Err(err).Int64("ad_account_id", ad.ID).Msg("failed to enqueue insight sync")
			continue
		}
		queued++
	}
	return queued, nil
}

// enqueue 同一广告账户同类任务不并行；入队失败时任务记为失败
func (s *FacebookService) enqueue(ctx context.Context, job *model.SyncJob) error {
	open, err := s.jobRepo.HasOpenJob(ctx, job.AdAccountID, job.Kind)
	if err != nil {
		return err
	}
	if open {
		return ErrSyncJobRunning
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return err
	}

	err = s.queue.Push(ctx, &queue.JobMessage{
		JobID:       job.ID,
		UserID:      job.UserID,
		AdAccountID: job.AdAccountID,
		Kind:        job.Kind,
	})
	if err != nil {
		completedAt := s.now()
		_ = s.jobRepo.UpdateFields(ctx, job.ID, map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_message": "入队失败",
			"completed_at":  &completedAt,
		})
		return fmt.Errorf("failed to push sync job: %w", err)
	}
	return nil
}

func (s *FacebookService) ownedAccount(ctx context.Context, userID, id int64) (*model.FacebookAccount, error) {
	account, err := s.fbRepo.GetAccountForUser(ctx, id, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrFacebookAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (s *FacebookService) adAccountToken(ctx context.Context, userID, adAccountID int64) (*model.AdAccount, string, error) {
	adAccount, err := ownedAdAccount(ctx, s.fbRepo, adAccountID, userID)
	if err != nil {
		return nil, "", err
	}
	token, err := accessToken(adAccount.FacebookAccount, s.now())
	if err != nil {
		return nil, "", err
	}
	return adAccount, token, nil
}

// userToken 用户任一有效账户的令牌
func (s *FacebookService) userToken(ctx context.Context, userID int64) (string, error) {
	now := s.now()
	account, err := s.fbRepo.GetTokenAccount(ctx, userID, now)
	if err != nil {
		if isNotFound(err) {
			return "", ErrFacebookNotConnected
		}
		return "", err
	}
	return accessToken(account, now)
}

func adAccountUsersFromGraph(users []facebook.AdAccountUser) []*model.AdAccountUser {
	out := make([]*model.AdAccountUser, 0, len(users))
	for _, u := range users {
		out = append(out, &model.AdAccountUser{
			FacebookUserID: u.ID,
			Name:           u.Name,
			Role:           truncate(strings.Join(u.Tasks, ","), 50),
		})
	}
	return out
}
