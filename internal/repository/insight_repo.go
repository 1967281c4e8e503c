package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/qs3c/fbads_go_server/internal/model"
)

// InsightFilter 洞察查询条件，AdAccountIDs 为空时不返回任何数据
type InsightFilter struct {
	AdAccountIDs []int64
	ObjectType   string
	ObjectID     string
	Since        time.Time
	Until        time.Time
}

// InsightTotals SQL 汇总结果
type InsightTotals struct {
	Impressions int64
	Clicks      int64
	Spend       float64
	Conversions int64
	Reach       int64
}

type InsightRepository struct {
	db *gorm.DB
}

func NewInsightRepository(db *gorm.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

func (r *InsightRepository) scope(ctx context.Context, f InsightFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&model.Insight{}).Where("ad_account_id IN ?", f.AdAccountIDs)
	if f.ObjectType != "" {
		query = query.Where("object_type = ?", f.ObjectType)
	}
	if f.ObjectID != "" {
		query = query.Where("object_id = ?", f.ObjectID)
	}
	if !f.Since.IsZero() {
		query = query.Where("date >= ?", f.Since)
	}
	if !f.Until.IsZero() {
		query = query.Where("date <= ?", f.Until)
	}
	return query
}

// Find 按日期升序返回洞察
func (r *InsightRepository) Find(ctx context.Context, f InsightFilter) ([]*model.Insight, error) {
	insights := []*model.Insight{}
	if len(f.AdAccountIDs) == 0 {
		return insights, nil
	}
	err := r.scope(ctx, f).Order("date ASC, id ASC").Find(&insights).Error
	return insights, err
}

// Aggregate 在数据库中汇总指标
func (r *InsightRepository) Aggregate(ctx context.Context, f InsightFilter) (*InsightTotals, error) {
	var totals InsightTotals
	if len(f.AdAccountIDs) == 0 {
		return &totals, nil
	}
	err := r.scope(ctx, f).Select(
		"COALESCE(SUM(impressions), 0) AS impressions, " +
			"COALESCE(SUM(clicks), 0) AS clicks, " +
			"COALESCE(SUM(spend), 0) AS spend, " +
			"COALESCE(SUM(conversions), 0) AS conversions, " +
			"COALESCE(SUM(reach), 0) AS reach",
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

// Upsert 按 (object_type, object_id, date) 写入或覆盖
func (r *InsightRepository) Upsert(ctx context.Context, insights []*model.Insight) error {
	if len(insights) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "object_type"}, {Name: "object_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"impressions", "clicks", "reach", "spend", "cpc", "ctr", "frequency", "conversions", "updated_at",
		}),
	}).CreateInBatches(insights, 200).Error
}
