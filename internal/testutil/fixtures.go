package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/model"
)

// DefaultPassword 测试用户的默认明文密码
const DefaultPassword = "password123"

var seq int64

func nextSeq() int64 {
	return atomic.AddInt64(&seq, 1)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	return string(hash)
}

// TestUser 创建测试用户，默认密码为 DefaultPassword
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	n := nextSeq()
	user := &model.User{
		Email:         fmt.Sprintf("test_%d_%d@example.com", n, time.Now().UnixNano()%100000),
		PasswordHash:  mustHash(t, DefaultPassword),
		FirstName:     "Test",
		LastName:      fmt.Sprintf("User%d", n),
		Status:        model.UserStatusActive,
		EmailVerified: true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithPassword 设置密码（bcrypt 最小代价）
func WithPassword(t *testing.T, password string) func(*model.User) {
	hash := mustHash(t, password)
	return func(u *model.User) {
		u.PasswordHash = hash
	}
}

// WithStatus 设置用户状态
func WithStatus(status string) func(*model.User) {
	return func(u *model.User) {
		u.Status = status
	}
}

// TestRole 创建角色并绑定权限，权限不存在时自动创建
func TestRole(t *testing.T, db *gorm.DB, name string, permissions ...string) *model.Role {
	t.Helper()

	role := &model.Role{Name: name}
	if err := db.Where(model.Role{Name: name}).FirstOrCreate(role).Error; err != nil {
		t.Fatalf("Failed to create test role: %v", err)
	}

	for _, p := range permissions {
		perm := TestPermission(t, db, p)
		rp := model.RolePermission{RoleID: role.ID, PermissionID: perm.ID}
		if err := db.Where(rp).FirstOrCreate(&rp).Error; err != nil {
			t.Fatalf("Failed to bind permission: %v", err)
		}
	}

	return role
}

// TestPermission 按 resource:action 名称创建权限
func TestPermission(t *testing.T, db *gorm.DB, name string) *model.Permission {
	t.Helper()

	resource, action, _ := strings.Cut(name, ":")
	perm := &model.Permission{Name: name}
	err := db.Where(model.Permission{Name: name}).
		Attrs(model.Permission{Resource: resource, Action: action}).
		FirstOrCreate(perm).Error
	if err != nil {
		t.Fatalf("Failed to create test permission: %v", err)
	}
	return perm
}

// GrantRole 给用户授予角色
func GrantRole(t *testing.T, db *gorm.DB, userID int64, role *model.Role) {
	t.Helper()

	if err := db.Create(&model.UserRole{UserID: userID, RoleID: role.ID}).Error; err != nil {
		t.Fatalf("Failed to grant role: %v", err)
	}
}

// TestUserWithPermissions 创建用户及一个拥有指定权限的专属角色
func TestUserWithPermissions(t *testing.T, db *gorm.DB, permissions ...string) *model.User {
	t.Helper()

	user := TestUser(t, db)
	role := TestRole(t, db, fmt.Sprintf("role_%d", nextSeq()), permissions...)
	GrantRole(t, db, user.ID, role)
	return user
}

// TestPlan 创建订阅套餐
func TestPlan(t *testing.T, db *gorm.DB, name string, price float64) *model.SubscriptionPlan {
	t.Helper()

	plan := &model.SubscriptionPlan{
		Name:            name,
		Description:     name + " plan",
		Price:           price,
		BillingInterval: model.IntervalMonth,
		Features:        model.StringArray{"feature"},
		IsActive:        true,
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}
	return plan
}

// TestSubscription 创建订阅
func TestSubscription(t *testing.T, db *gorm.DB, userID, planID int64, opts ...func(*model.Subscription)) *model.Subscription {
	t.Helper()

	sub := &model.Subscription{
		UserID:               userID,
		PlanID:               planID,
		StripeSubscriptionID: fmt.Sprintf("sub_test_%d", nextSeq()),
		StripeCustomerID:     "cus_test",
		Status:               model.SubscriptionActive,
		StartDate:            time.Now().Add(-time.Hour),
	}

	for _, opt := range opts {
		opt(sub)
	}

	if err := db.Create(sub).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}
	return sub
}

// WithSubStatus 设置订阅状态
func WithSubStatus(status string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.Status = status
	}
}

// WithStripeID 设置 Stripe 订阅 ID
func WithStripeID(id string) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.StripeSubscriptionID = id
	}
}

// WithEndDate 设置结束时间
func WithEndDate(end time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.EndDate = &end
	}
}

// WithLastEventAt 设置最近事件时间
func WithLastEventAt(at time.Time) func(*model.Subscription) {
	return func(s *model.Subscription) {
		s.LastEventAt = &at
	}
}

// TestFacebookAccount 创建 Facebook 账户，令牌默认 30 天后过期
func TestFacebookAccount(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.FacebookAccount)) *model.FacebookAccount {
	t.Helper()

	expires := time.Now().Add(30 * 24 * time.Hour)
	account := &model.FacebookAccount{
		UserID:         userID,
		FacebookUserID: fmt.Sprintf("fb_%d", nextSeq()),
		AccessToken:    "EAAB-test-token",
		TokenExpiresAt: &expires,
		Name:           "FB Tester",
	}

	for _, opt := range opts {
		opt(account)
	}

	if err := db.Create(account).Error; err != nil {
		t.Fatalf("Failed to create test facebook account: %v", err)
	}
	return account
}

// WithExpiredToken 令牌已过期
func WithExpiredToken() func(*model.FacebookAccount) {
	return func(a *model.FacebookAccount) {
		past := time.Now().Add(-time.Hour)
		a.TokenExpiresAt = &past
	}
}

// TestAdAccount 创建广告账户
func TestAdAccount(t *testing.T, db *gorm.DB, facebookAccountID int64) *model.AdAccount {
	t.Helper()

	n := nextSeq()
	adAccount := &model.AdAccount{
		FacebookAccountID:   facebookAccountID,
		FacebookAdAccountID: fmt.Sprintf("act_%d", 1000+n),
		Name:                fmt.Sprintf("Ad Account %d", n),
		Currency:            "USD",
		Timezone:            "America/Los_Angeles",
		AccountStatus:       1,
	}
	if err := db.Create(adAccount).Error; err != nil {
		t.Fatalf("Failed to create test ad account: %v", err)
	}
	return adAccount
}

// TestCampaign 创建广告系列
func TestCampaign(t *testing.T, db *gorm.DB, adAccountID int64, opts ...func(*model.Campaign)) *model.Campaign {
	t.Helper()

	n := nextSeq()
	campaign := &model.Campaign{
		AdAccountID:         adAccountID,
		FacebookCampaignID:  fmt.Sprintf("%d", 23840000+n),
		Name:                fmt.Sprintf("Campaign %d", n),
		Objective:           "OUTCOME_TRAFFIC",
		Status:              model.CampaignStatusPaused,
		BuyingType:          model.BuyingTypeAuction,
		SpecialAdCategories: model.StringArray{},
	}

	for _, opt := range opts {
		opt(campaign)
	}

	if err := db.Create(campaign).Error; err != nil {
		t.Fatalf("Failed to create test campaign: %v", err)
	}
	return campaign
}

// TestInsight 创建一条日粒度洞察
func TestInsight(t *testing.T, db *gorm.DB, adAccountID int64, objectType, objectID string, date time.Time, impressions, clicks int64, spend float64) *model.Insight {
	t.Helper()

	insight := &model.Insight{
		AdAccountID: adAccountID,
		ObjectType:  objectType,
		ObjectID:    objectID,
		Date:        date,
		Impressions: impressions,
		Clicks:      clicks,
		Spend:       spend,
	}
	if err := db.Create(insight).Error; err != nil {
		t.Fatalf("Failed to create test insight: %v", err)
	}
	return insight
}

// TestCollection 创建广告收藏夹
func TestCollection(t *testing.T, db *gorm.DB, userID int64, isPublic bool) *model.AdCollection {
	t.Helper()

	collection := &model.AdCollection{
		UserID:   userID,
		Name:     fmt.Sprintf("Collection %d", nextSeq()),
		IsPublic: isPublic,
	}
	if err := db.Create(collection).Error; err != nil {
		t.Fatalf("Failed to create test collection: %v", err)
	}
	return collection
}

// TestAdLibraryItem 创建广告库条目
func TestAdLibraryItem(t *testing.T, db *gorm.DB, fbAdID string) *model.AdLibraryItem {
	t.Helper()

	item := &model.AdLibraryItem{
		FacebookAdID: fbAdID,
		PageName:     "Test Page",
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("Failed to create test ad library item: %v", err)
	}
	return item
}

// TestSyncJob 创建同步任务
func TestSyncJob(t *testing.T, db *gorm.DB, userID, adAccountID int64, kind, status string) *model.SyncJob {
	t.Helper()

	job := &model.SyncJob{
		UserID:      userID,
		AdAccountID: adAccountID,
		Kind:        kind,
		Status:      status,
	}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test sync job: %v", err)
	}
	return job
}
