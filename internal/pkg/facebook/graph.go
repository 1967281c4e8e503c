package facebook

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// 请求字段
const (
	userFields      = "id,name,email,picture"
	adAccountFields = "id,name,account_id,account_status,business_name,business,currency,timezone_name"
	campaignFields  = "id,name,objective,status,buying_type,special_ad_categories,spend_cap,daily_budget,lifetime_budget,start_time,stop_time,created_time,updated_time"
	adSetFields     = "id,name,status,optimization_goal,billing_event,daily_budget,lifetime_budget,start_time,end_time"
	insightFields   = "impressions,clicks,spend,cpc,ctr,reach,frequency,actions"
	adLibraryFields = "id,ad_creation_time,ad_creative_bodies,ad_creative_link_captions,ad_creative_link_descriptions,ad_creative_link_titles,ad_delivery_start_time,ad_delivery_stop_time,ad_snapshot_url,page_id,page_name,impressions,spend"

	graphTimeLayout = "2006-01-02T15:04:05-0700"
)

// 细分维度
var (
	BreakdownDemographics = []string{"age", "gender"}
	BreakdownPlacements   = []string{"publisher_platform", "platform_position"}
	BreakdownDevices      = []string{"device_platform", "impression_device"}
)

type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

type AdAccount struct {
	ID            string `json:"id"` // act_xxx
	AccountID     string `json:"account_id"`
	Name          string `json:"name"`
	AccountStatus int    `json:"account_status"`
	BusinessName  string `json:"business_name"`
	Business      *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"business"`
	Currency     string `json:"currency"`
	TimezoneName string `json:"timezone_name"`
}

// BusinessID 所属商务管理平台 ID
func (a AdAccount) BusinessID() string {
	if a.Business == nil {
		return ""
	}
	return a.Business.ID
}

type AdAccountUser struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Tasks []string `json:"tasks"`
}

type Campaign struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Objective           string   `json:"objective"`
	Status              string   `json:"status"`
	BuyingType          string   `json:"buying_type"`
	SpecialAdCategories []string `json:"special_ad_categories"`
	SpendCap            string   `json:"spend_cap"`
	DailyBudget         string   `json:"daily_budget"`
	LifetimeBudget      string   `json:"lifetime_budget"`
	StartTime           string   `json:"start_time"`
	StopTime            string   `json:"stop_time"`
	CreatedTime         string   `json:"created_time"`
	UpdatedTime         string   `json:"updated_time"`
}

type AdSet struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Status           string `json:"status"`
	OptimizationGoal string `json:"optimization_goal"`
	BillingEvent     string `json:"billing_event"`
	DailyBudget      string `json:"daily_budget"`
	LifetimeBudget   string `json:"lifetime_budget"`
}

type Action struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// InsightRow insights 接口的一行，数值字段为字符串
type InsightRow struct {
	DateStart         string   `json:"date_start"`
	DateStop          string   `json:"date_stop"`
	AccountID         string   `json:"account_id"`
	CampaignID        string   `json:"campaign_id"`
	AdsetID           string   `json:"adset_id"`
	AdID              string   `json:"ad_id"`
	Impressions       string   `json:"impressions"`
	Clicks            string   `json:"clicks"`
	Spend             string   `json:"spend"`
	CPC               string   `json:"cpc"`
	CTR               string   `json:"ctr"`
	Reach             string   `json:"reach"`
	Frequency         string   `json:"frequency"`
	Actions           []Action `json:"actions"`
	Age               string   `json:"age"`
	Gender            string   `json:"gender"`
	PublisherPlatform string   `json:"publisher_platform"`
	PlatformPosition  string   `json:"platform_position"`
	DevicePlatform    string   `json:"device_platform"`
	ImpressionDevice  string   `json:"impression_device"`
}

// Conversions 转化类 action 的合计
func (r InsightRow) Conversions() int64 {
	var total int64
	for _, a := range r.Actions {
		if isConversion(a.ActionType) {
			total += ParseInt(a.Value)
		}
	}
	return total
}

// Dimensions 返回请求的细分维度取值
func (r InsightRow) Dimensions(breakdowns []string) map[string]string {
	all := map[string]string{
		"age":                r.Age,
		"gender":             r.Gender,
		"publisher_platform": r.PublisherPlatform,
		"platform_position":  r.PlatformPosition,
		"device_platform":    r.DevicePlatform,
		"impression_device":  r.ImpressionDevice,
	}
	dims := make(map[string]string, len(breakdowns))
	for _, b := range breakdowns {
		dims[b] = all[b]
	}
	return dims
}

func isConversion(actionType string) bool {
	switch actionType {
	case "purchase", "omni_purchase", "lead", "complete_registration":
		return true
	}
	return strings.HasPrefix(actionType, "offsite_conversion")
}

// ArchivedAd 广告库中的广告
type ArchivedAd struct {
	ID                         string   `json:"id"`
	AdCreationTime             string   `json:"ad_creation_time"`
	AdCreativeBodies           []string `json:"ad_creative_bodies"`
	AdCreativeLinkCaptions     []string `json:"ad_creative_link_captions"`
	AdCreativeLinkDescriptions []string `json:"ad_creative_link_descriptions"`
	AdCreativeLinkTitles       []string `json:"ad_creative_link_titles"`
	AdDeliveryStartTime        string   `json:"ad_delivery_start_time"`
	AdDeliveryStopTime         string   `json:"ad_delivery_stop_time"`
	AdSnapshotURL              string   `json:"ad_snapshot_url"`
	PageID                     string   `json:"page_id"`
	PageName                   string   `json:"page_name"`

	// Raw 原始 JSON，入库时保留
	Raw json.RawMessage `json:"-"`
}

// InsightParams insights 查询参数
type InsightParams struct {
	Since         time.Time
	Until         time.Time
	TimeIncrement string // "1" 表示按天，"all_days" 表示汇总
	Level         string
	Breakdowns    []string
	Fields        string
}

func (p InsightParams) values() url.Values {
	v := url.Values{}
	fields := p.Fields
	if fields == "" {
		fields = insightFields
	}
	v.Set("fields", fields)
	if !p.Since.IsZero() && !p.Until.IsZero() {
		tr, _ := json.Marshal(map[string]string{
			"since": p.Since.Format("2006-01-02"),
			"until": p.Until.Format("2006-01-02"),
		})
		v.Set("time_range", string(tr))
	}
	if p.TimeIncrement != "" {
		v.Set("time_increment", p.TimeIncrement)
	}
	if p.Level != "" {
		v.Set("level", p.Level)
	}
	if len(p.Breakdowns) > 0 {
		v.Set("breakdowns", strings.Join(p.Breakdowns, ","))
	}
	return v
}

// AdLibraryQuery 广告库搜索参数
type AdLibraryQuery struct {
	SearchTerms string
	AdType      string
	Countries   []string
	DateMin     string
	DateMax     string
	Limit       int
}

func (q AdLibraryQuery) values() url.Values {
	v := url.Values{}
	v.Set("fields", adLibraryFields)
	adType := q.AdType
	if adType == "" {
		adType = "POLITICAL_AND_ISSUE_ADS"
	}
	v.Set("ad_type", adType)
	countries := q.Countries
	if len(countries) == 0 {
		countries = []string{"US"}
	}
	cs, _ := json.Marshal(countries)
	v.Set("ad_reached_countries", string(cs))
	if q.SearchTerms != "" {
		v.Set("search_terms", q.SearchTerms)
	}
	if q.DateMin != "" {
		v.Set("ad_delivery_date_min", q.DateMin)
	}
	if q.DateMax != "" {
		v.Set("ad_delivery_date_max", q.DateMax)
	}
	return v
}

// CampaignInput 创建或更新广告系列的参数，nil 字段不提交
type CampaignInput struct {
	Name                string
	Objective           string
	Status              string
	BuyingType          string
	SpecialAdCategories []string
	DailyBudget         *float64
	LifetimeBudget      *float64
	SpendCap            *float64
	StartTime           *time.Time
	StopTime            *time.Time
	create              bool
}

func (in CampaignInput) values() url.Values {
	v := url.Values{}
	if in.Name != "" {
		v.Set("name", in.Name)
	}
	if in.Objective != "" {
		v.Set("objective", in.Objective)
	}
	if in.Status != "" {
		v.Set("status", in.Status)
	}
	if in.BuyingType != "" {
		v.Set("buying_type", in.BuyingType)
	}
	// 创建时 special_ad_categories 必填
	if in.create || in.SpecialAdCategories != nil {
		cats := in.SpecialAdCategories
		if cats == nil {
			cats = []string{}
		}
		b, _ := json.Marshal(cats)
		v.Set("special_ad_categories", string(b))
	}
	if in.DailyBudget != nil {
		v.Set("daily_budget", toMinorUnits(*in.DailyBudget))
	}
	if in.LifetimeBudget != nil {
		v.Set("lifetime_budget", toMinorUnits(*in.LifetimeBudget))
	}
	if in.SpendCap != nil {
		v.Set("spend_cap", toMinorUnits(*in.SpendCap))
	}
	if in.StartTime != nil {
		v.Set("start_time", in.StartTime.Format(time.RFC3339))
	}
	if in.StopTime != nil {
		v.Set("stop_time", in.StopTime.Format(time.RFC3339))
	}
	return v
}

// ActPath 确保广告账户 ID 带 act_ 前缀
func ActPath(adAccountID string) string {
	if strings.HasPrefix(adAccountID, "act_") {
		return adAccountID
	}
	return "act_" + adAccountID
}

// Me 当前令牌对应的用户
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.Get(ctx, "me", token, url.Values{"fields": {userFields}}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// AdAccounts 当前用户可访问的广告账户
func (c *Client) AdAccounts(ctx context.Context, token string) ([]AdAccount, error) {
	return ListAll[AdAccount](ctx, c, "me/adaccounts", token, url.Values{"fields": {adAccountFields}}, 0)
}

func (c *Client) AdAccountUsers(ctx context.Context, token, adAccountID string) ([]AdAccountUser, error) {
	return ListAll[AdAccountUser](ctx, c, ActPath(adAccountID)+"/users", token, url.Values{"fields": {"id,name,tasks"}}, 0)
}

// Campaigns 广告账户下的广告系列，跟随分页最多 limit 条
func (c *Client) Campaigns(ctx context.Context, token, adAccountID string, limit int) ([]Campaign, error) {
	return ListAll[Campaign](ctx, c, ActPath(adAccountID)+"/campaigns", token, url.Values{"fields": {campaignFields}}, limit)
}

func (c *Client) AdSets(ctx context.Context, token, campaignID string) ([]AdSet, error) {
	return ListAll[AdSet](ctx, c, campaignID+"/adsets", token, url.Values{"fields": {adSetFields}}, 0)
}

// CreateCampaign 返回新建广告系列的 ID
func (c *Client) CreateCampaign(ctx context.Context, token, adAccountID string, in CampaignInput) (string, error) {
	in.create = true
	var out struct {
		ID string `json:"id"`
	}
	if err := c.Post(ctx, ActPath(adAccountID)+"/campaigns", token, in.values(), &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) UpdateCampaign(ctx context.Context, token, campaignID string, in CampaignInput) error {
	return c.Post(ctx, campaignID, token, in.values(), nil)
}

func (c *Client) DeleteCampaign(ctx context.Context, token, campaignID string) error {
	return c.Delete(ctx, campaignID, token, nil, nil)
}

// Insights 任意对象（act_x、广告系列、广告组、广告）的洞察
func (c *Client) Insights(ctx context.Context, token, objectID string, p InsightParams) ([]InsightRow, error) {
	return ListAll[InsightRow](ctx, c, objectID+"/insights", token, p.values(), 0)
}

// SearchAdLibrary 搜索广告库（ads_archive）
func (c *Client) SearchAdLibrary(ctx context.Context, token string, q AdLibraryQuery) ([]ArchivedAd, error) {
	raws, err := ListAll[json.RawMessage](ctx, c, "ads_archive", token, q.values(), q.Limit)
	if err != nil {
		return nil, err
	}
	ads := make([]ArchivedAd, 0, len(raws))
	for _, raw := range raws {
		ad, err := decodeArchivedAd(raw)
		if err != nil {
			return nil, err
		}
		ads = append(ads, *ad)
	}
	return ads, nil
}

// ArchivedAd 单条广告库广告
func (c *Client) ArchivedAd(ctx context.Context, token, adID string) (*ArchivedAd, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, adID, token, url.Values{"fields": {adLibraryFields}}, &raw); err != nil {
		return nil, err
	}
	return decodeArchivedAd(raw)
}

func decodeArchivedAd(raw json.RawMessage) (*ArchivedAd, error) {
	var ad ArchivedAd
	if err := json.Unmarshal(raw, &ad); err != nil {
		return nil, err
	}
	ad.Raw = raw
	return &ad, nil
}

// ParseInt 解析字符串数值，失败返回 0
func ParseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParseFloat 解析字符串数值，失败返回 0
func ParseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// ParseTime 解析 Graph 时间，空串或格式错误返回 nil
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{graphTimeLayout, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// FromMinorUnits 预算字段以分为单位
func FromMinorUnits(s string) *float64 {
	if s == "" {
		return nil
	}
	f := float64(ParseInt(s)) / 100
	return &f
}

func toMinorUnits(v float64) string {
	return strconv.FormatInt(int64(math.Round(v*100)), 10)
}
