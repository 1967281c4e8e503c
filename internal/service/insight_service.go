package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/pkg/oss"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// 导出链接有效期（秒）
const exportURLExpiry = 3600

var exportHeader = []string{
	"date", "ad_account_id", "object_type", "object_id",
	"impressions", "clicks", "reach", "spend", "cpc", "ctr", "frequency", "conversions",
}

// ExportStorage 导出文件存储，由 oss.Client 实现
type ExportStorage interface {
	Put(objectKey string, data []byte, contentType string) error
	SignedURL(objectKey string, expireSeconds int64) (string, error)
}

type InsightService struct {
	fbRepo       *repository.FacebookRepository
	campaignRepo *repository.CampaignRepository
	insightRepo  *repository.InsightRepository
	graph        *facebook.Client
	storage      ExportStorage
	now          func() time.Time
}

// NewInsightService storage 为 nil 时导出不可用
func NewInsightService(
	fbRepo *repository.FacebookRepository,
	campaignRepo *repository.CampaignRepository,
	insightRepo *repository.InsightRepository,
	graph *facebook.Client,
	storage ExportStorage,
) *InsightService {
	return &InsightService{
		fbRepo:       fbRepo,
		campaignRepo: campaignRepo,
		insightRepo:  insightRepo,
		graph:        graph,
		storage:      storage,
		now:          time.Now,
	}
}

// List 按条件查询已同步的洞察
func (s *InsightService) List(ctx context.Context, userID int64, q *dto.InsightQuery) ([]*model.Insight, error) {
	f, err := s.filter(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return s.insightRepo.Find(ctx, f)
}

// Performance 汇总指标，未指定层级时按账户层级统计
func (s *InsightService) Performance(ctx context.Context, userID int64, q *dto.InsightQuery) (*dto.PerformanceSummary, error) {
	f, err := s.filter(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	if f.ObjectType == "" {
		f.ObjectType = model.ObjectAccount
	}

	totals, err := s.insightRepo.Aggregate(ctx, f)
	if err != nil {
		return nil, err
	}
	return summarize(totals, f.Since, f.Until), nil
}

// Breakdown 实时拉取细分数据，目标为广告系列或广告账户
func (s *InsightService) Breakdown(ctx context.Context, userID int64, breakdowns []string, q *dto.BreakdownQuery) ([]dto.BreakdownRow, error) {
	since, until, err := dateRange(q.StartDate, q.EndDate, s.now())
	if err != nil {
		return nil, err
	}

	var adAccountID int64
	var objectID string
	switch {
	case q.CampaignID != 0:
		campaign, err := ownedCampaign(ctx, s.campaignRepo, q.CampaignID, userID)
		if err != nil {
			return nil, err
		}
		adAccountID, objectID = campaign.AdAccountID, campaign.FacebookCampaignID
	case q.AdAccountID != 0:
		adAccountID = q.AdAccountID
	default:
		return nil, ErrBreakdownTarget
	}

	adAccount, err := ownedAdAccount(ctx, s.fbRepo, adAccountID, userID)
	if err != nil {
		return nil, err
	}
	token, err := accessToken(adAccount.FacebookAccount, s.now())
	if err != nil {
		return nil, err
	}
	if objectID == "" {
		objectID = facebook.ActPath(adAccount.FacebookAdAccountID)
	}

	rows, err := s.graph.Insights(ctx, token, objectID, facebook.InsightParams{
		Since:      since,
		Until:      until,
		Breakdowns: breakdowns,
	})
	if err != nil {
		return nil, graphError("facebook.breakdown", err)
	}

	out := make([]dto.BreakdownRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.BreakdownRow{
			Dimensions:  r.Dimensions(breakdowns),
			Impressions: facebook.ParseInt(r.Impressions),
			Clicks:      facebook.ParseInt(r.Clicks),
			Spend:       facebook.ParseFloat(r.Spend),
			Reach:       facebook.ParseInt(r.Reach),
		})
	}
	return out, nil
}

// Export 把查询结果写成 CSV 上传到 OSS，返回临时下载地址
func (s *InsightService) Export(ctx context.Context, userID int64, q *dto.InsightQuery) (*dto.ExportResponse, error) {
	if s.storage == nil {
		return nil, ErrExportUnavailable
	}

	insights, err := s.List(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	data, err := renderCSV(insights)
	if err != nil {
		return nil, err
	}

	key := oss.ExportKey(userID, ".csv")
	if err := s.storage.Put(key, data, oss.ContentType(".csv")); err != nil {
		return nil, err
	}
	url, err := s.storage.SignedURL(key, exportURLExpiry)
	if err != nil {
		return nil, err
	}

	log.Info().Int64("user_id", userID).Str("key", key).Int("rows", len(insights)).Msg("insights exported")
	return &dto.ExportResponse{Key: key, URL: url, Rows: len(insights)}, nil
}

// filter 把查询参数转成仓储条件，ad_account_id 为空时覆盖用户全部账户
func (s *InsightService) filter(ctx context.Context, userID int64, q *dto.InsightQuery) (repository.InsightFilter, error) {
	since, until, err := dateRange(q.StartDate, q.EndDate, s.now())
	if err != nil {
		return repository.InsightFilter{}, err
	}

	f := repository.InsightFilter{Since: since, Until: until, ObjectType: q.ObjectType}
	if q.AdAccountID != 0 {
		if _, err := ownedAdAccount(ctx, s.fbRepo, q.AdAccountID, userID); err != nil {
			return repository.InsightFilter{}, err
		}
		f.AdAccountIDs = []int64{q.AdAccountID}
	} else {
		ids, err := s.fbRepo.AdAccountIDsByUser(ctx, userID)
		if err != nil {
			return repository.InsightFilter{}, err
		}
		f.AdAccountIDs = ids
	}

	switch {
	case q.AdID != "":
		f.ObjectType, f.ObjectID = model.ObjectAd, q.AdID
	case q.AdSetID != "":
		f.ObjectType, f.ObjectID = model.ObjectAdSet, q.AdSetID
	case q.CampaignID != "":
		f.ObjectType, f.ObjectID = model.ObjectCampaign, q.CampaignID
	}
	return f, nil
}

// summarize 派生 CTR（百分比）、CPC 和单次转化成本
func summarize(t *repository.InsightTotals, since, until time.Time) *dto.PerformanceSummary {
	sum := &dto.PerformanceSummary{
		Impressions: t.Impressions,
		Clicks:      t.Clicks,
		Spend:       round(t.Spend, 2),
		Conversions: t.Conversions,
		Reach:       t.Reach,
		StartDate:   since.Format(dateLayout),
		EndDate:     until.Format(dateLayout),
	}
	if t.Impressions > 0 {
		sum.CTR = round(float64(t.Clicks)/float64(t.Impressions)*100, 4)
	}
	if t.Clicks > 0 {
		sum.CPC = round(t.Spend/float64(t.Clicks), 4)
	}
	if t.Conversions > 0 {
		sum.CostPerConversion = round(t.Spend/float64(t.Conversions), 4)
	}
	return sum
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func renderCSV(insights []*model.Insight) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, in := range insights {
		err := w.Write([]string{
			in.Date.Format(dateLayout),
			strconv.FormatInt(in.AdAccountID, 10),
			in.ObjectType,
			in.ObjectID,
			strconv.FormatInt(in.Impressions, 10),
			strconv.FormatInt(in.Clicks, 10),
			strconv.FormatInt(in.Reach, 10),
			strconv.FormatFloat(in.Spend, 'f', 2, 64),
			strconv.FormatFloat(in.CPC, 'f', 4, 64),
			strconv.FormatFloat(in.CTR, 'f', 4, 64),
			strconv.FormatFloat(in.Frequency, 'f', 4, 64),
			strconv.FormatInt(in.Conversions, 10),
		})
		if err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
