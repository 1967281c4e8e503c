package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/pkg/apperr"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

const (
	dateLayout         = "2006-01-02"
	defaultInsightDays = 30
	liveCampaignLimit  = 500
)

// graphError Graph 调用失败统一转为 502，细节只写日志
func graphError(op string, err error) error {
	var apiErr *facebook.APIError
	if errors.As(err, &apiErr) {
		log.Warn().
			Str("op", op).
			Int("fb_code", apiErr.Code).
			Int("fb_subcode", apiErr.ErrorSubcode).
			Str("fbtrace_id", apiErr.FBTraceID).
			Bool("token_error", apiErr.IsTokenError()).
			Msg("graph api error")
	}
	return apperr.Upstream(op, err)
}

// accessToken 账户令牌有效时返回令牌
func accessToken(account *model.FacebookAccount, now time.Time) (string, error) {
	if account == nil || !account.TokenValid(now) {
		return "", ErrFacebookNotConnected
	}
	return account.AccessToken, nil
}

// ownedAdAccount 广告账户必须属于该用户，否则视为不存在
func ownedAdAccount(ctx context.Context, fbRepo *repository.FacebookRepository, id, userID int64) (*model.AdAccount, error) {
	adAccount, err := fbRepo.GetAdAccountForUser(ctx, id, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrAdAccountNotFound
		}
		return nil, err
	}
	return adAccount, nil
}

// dateRange 解析 YYYY-MM-DD 区间，缺省为截至今天的最近 30 天
func dateRange(start, end string, now time.Time) (time.Time, time.Time, error) {
	today := now.UTC().Truncate(24 * time.Hour)

	until := today
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidDateRange
		}
		until = t
	}

	since := until.AddDate(0, 0, -defaultInsightDays)
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return time.Time{}, time.Time{}, ErrInvalidDateRange
		}
		since = t
	}

	if since.After(until) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return since, until, nil
}

// adAccountFromGraph Graph 广告账户转为本地模型
func adAccountFromGraph(fbAccountID int64, a facebook.AdAccount, syncedAt time.Time) *model.AdAccount {
	return &model.AdAccount{
		FacebookAccountID:   fbAccountID,
		FacebookAdAccountID: facebook.ActPath(a.ID),
		Name:                a.Name,
		Currency:            a.Currency,
		Timezone:            a.TimezoneName,
		BusinessName:        a.BusinessName,
		BusinessID:          a.BusinessID(),
		AccountStatus:       a.AccountStatus,
		LastSyncedAt:        &syncedAt,
	}
}

// campaignFromGraph Graph 广告系列转为本地模型
func campaignFromGraph(adAccountID int64, c facebook.Campaign) *model.Campaign {
	cats := model.StringArray(c.SpecialAdCategories)
	if cats == nil {
		cats = model.StringArray{}
	}
	buyingType := c.BuyingType
	if buyingType == "" {
		buyingType = model.BuyingTypeAuction
	}
	return &model.Campaign{
		AdAccountID:         adAccountID,
		FacebookCampaignID:  c.ID,
		Name:                c.Name,
		Objective:           c.Objective,
		Status:              c.Status,
		BuyingType:          buyingType,
		SpecialAdCategories: cats,
		DailyBudget:         facebook.FromMinorUnits(c.DailyBudget),
		LifetimeBudget:      facebook.FromMinorUnits(c.LifetimeBudget),
		SpendCap:            facebook.FromMinorUnits(c.SpendCap),
		StartTime:           facebook.ParseTime(c.StartTime),
		EndTime:             facebook.ParseTime(c.StopTime),
	}
}

func adSetFromGraph(campaignID int64, a facebook.AdSet) *model.AdSet {
	return &model.AdSet{
		CampaignID:       campaignID,
		FacebookAdSetID:  a.ID,
		Name:             a.Name,
		Status:           a.Status,
		OptimizationGoal: a.OptimizationGoal,
		BillingEvent:     a.BillingEvent,
		DailyBudget:      facebook.FromMinorUnits(a.DailyBudget),
		LifetimeBudget:   facebook.FromMinorUnits(a.LifetimeBudget),
	}
}

// insightFromGraph 按层级取对象 ID，日期取 date_start
func insightFromGraph(adAccount *model.AdAccount, level string, r facebook.InsightRow) (*model.Insight, bool) {
	date, err := time.Parse(dateLayout, r.DateStart)
	if err != nil {
		return nil, false
	}

	objectType, objectID := model.ObjectAccount, adAccount.FacebookAdAccountID
	switch level {
	case "campaign":
		objectType, objectID = model.ObjectCampaign, r.CampaignID
	case "adset":
		objectType, objectID = model.ObjectAdSet, r.AdsetID
	case "ad":
		objectType, objectID = model.ObjectAd, r.AdID
	}
	if objectID == "" {
		return nil, false
	}

	return &model.Insight{
		AdAccountID: adAccount.ID,
		ObjectType:  objectType,
		ObjectID:    objectID,
		Date:        date,
		Impressions: facebook.ParseInt(r.Impressions),
		Clicks:      facebook.ParseInt(r.Clicks),
		Reach:       facebook.ParseInt(r.Reach),
		Spend:       facebook.ParseFloat(r.Spend),
		CPC:         facebook.ParseFloat(r.CPC),
		CTR:         facebook.ParseFloat(r.CTR),
		Frequency:   facebook.ParseFloat(r.Frequency),
		Conversions: r.Conversions(),
	}, true
}
