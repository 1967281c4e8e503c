package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/internal/pkg/apperr"
)

var (
	ErrEmailExists         = apperr.Conflict("邮箱已被注册")
	ErrInvalidCredentials  = apperr.Unauthenticated("邮箱或密码错误")
	ErrUserInactive        = apperr.Unauthenticated("账号已被停用")
	ErrInvalidRefreshToken = apperr.Unauthenticated("刷新令牌无效或已过期")
	ErrInvalidResetToken   = apperr.Validation("重置链接无效或已过期")
	ErrWrongPassword       = apperr.Validation("当前密码不正确")
	ErrUserNotFound        = apperr.NotFound("用户不存在")
	ErrRoleNotFound        = apperr.Validation("角色不存在")
	ErrAdminOnlyFields     = apperr.Forbidden("无权修改邮箱、状态或角色")
	ErrDeleteSelf          = apperr.Validation("不能删除当前登录的账号")
	ErrForbidden           = apperr.Forbidden("权限不足")

	ErrPlanNotFound         = apperr.NotFound("套餐不存在")
	ErrSubscriptionNotFound = apperr.NotFound("订阅不存在")
	ErrNoActiveSubscription = apperr.NotFound("没有生效中的订阅")
	ErrSubscriptionCanceled = apperr.Validation("订阅已取消")
	ErrBillingUnavailable   = apperr.Unavailable("支付功能未配置")

	ErrFacebookNotConfigured   = apperr.Unavailable("Facebook 应用未配置")
	ErrInvalidOAuthState       = apperr.Validation("授权状态无效或已过期")
	ErrFacebookNotConnected    = apperr.Validation("请先连接有效的 Facebook 账户")
	ErrFacebookAccountNotFound = apperr.NotFound("Facebook 账户不存在")
	ErrAdAccountNotFound       = apperr.NotFound("广告账户不存在")
	ErrCampaignNotFound        = apperr.NotFound("广告系列不存在")
	ErrSyncJobNotFound         = apperr.NotFound("同步任务不存在")
	ErrSyncJobRunning          = apperr.Conflict("该广告账户已有进行中的同步任务")
	ErrInvalidSyncKind         = apperr.Validation("不支持的同步类型")
	ErrInvalidDateRange        = apperr.Validation("日期范围无效")
	ErrBreakdownTarget         = apperr.Validation("需要指定 campaign_id 或 ad_account_id")

	ErrCollectionNotFound = apperr.NotFound("收藏夹不存在")
	ErrAdAlreadyCollected = apperr.Conflict("该广告已在收藏夹中")
	ErrCollectionAdAbsent = apperr.NotFound("收藏夹中没有该广告")

	ErrExportUnavailable = apperr.Unavailable("导出存储未配置")
)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
