package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/api/handler"
	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/pkg/metrics"
	"github.com/qs3c/fbads_go_server/internal/service"
)

// Handlers 路由用到的全部处理器
type Handlers struct {
	Auth      *handler.AuthHandler
	User      *handler.UserHandler
	Facebook  *handler.FacebookHandler
	AdAccount *handler.AdAccountHandler
	Campaign  *handler.CampaignHandler
	Insight   *handler.InsightHandler
	AdLibrary *handler.AdLibraryHandler
	Payment   *handler.PaymentHandler
	WebSocket *handler.WebSocketHandler
}

type Router struct {
	h        Handlers
	users    middleware.UserLookup
	resolver middleware.PermissionResolver
	cfg      *config.Config
}

func NewRouter(h Handlers, users middleware.UserLookup, resolver middleware.PermissionResolver, cfg *config.Config) *Router {
	return &Router{
		h:        h,
		users:    users,
		resolver: resolver,
		cfg:      cfg,
	}
}

func (r *Router) perm(name string) gin.HandlerFunc {
	return middleware.RequirePermission(r.resolver, name)
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.Metrics())
	engine.Use(middleware.CORS(r.cfg.CORS))
	engine.Use(middleware.RateLimit(r.cfg.RateLimit))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if r.cfg.Metrics.Enabled {
		engine.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	api := engine.Group("/api/v1")
	{
		// WebSocket，令牌走 query
		api.GET("/ws", r.h.WebSocket.Handle)

		// Stripe 回调，靠签名校验
		api.POST("/payments/webhook", r.h.Payment.Webhook)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.h.Auth.Register)
			auth.POST("/login", r.h.Auth.Login)
			auth.POST("/refresh", r.h.Auth.Refresh)
			auth.POST("/logout", r.h.Auth.Logout)
			auth.POST("/password/reset", r.h.Auth.ForgotPassword)
			auth.PUT("/password/reset", r.h.Auth.ResetPassword)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret, r.users))
		{
			me := authenticated.Group("/auth")
			{
				me.GET("/me", r.h.Auth.Me)
				me.PUT("/me", r.h.Auth.UpdateMe)
				me.POST("/change-password", r.h.Auth.ChangePassword)
			}

			// 用户管理，本人访问在处理器里放行
			users := authenticated.Group("/users")
			{
				users.GET("", r.perm(service.PermUsersRead), r.h.User.List)
				users.POST("", r.perm(service.PermUsersWrite), r.h.User.Create)
				users.GET("/roles/all", r.perm(service.PermRolesRead), r.h.User.Roles)
				users.GET("/permissions/all", r.perm(service.PermRolesRead), r.h.User.Permissions)
				users.POST("/change-password", r.h.Auth.ChangePassword)
				users.GET("/:id", r.h.User.Get)
				users.PUT("/:id", r.h.User.Update)
				users.POST("/:id/reset-password", r.perm(service.PermUsersWrite), r.h.User.ResetPassword)
				users.DELETE("/:id", r.perm(service.PermUsersWrite), r.h.User.Delete)
			}

			fb := authenticated.Group("/facebook")
			{
				fb.GET("/auth-url", r.h.Facebook.AuthURL)
				fb.POST("/callback", r.h.Facebook.Callback)
				fb.GET("/accounts", r.h.Facebook.Accounts)
				fb.DELETE("/accounts/:id", r.perm(service.PermUsersWrite), r.h.Facebook.DeleteAccount)
				fb.POST("/accounts/:id/sync", r.perm(service.PermAdAccountsWrite), r.h.Facebook.SyncAccount)
				fb.GET("/ad-accounts/:id/campaigns", r.perm(service.PermCampaignsRead), r.h.Facebook.LiveCampaigns)
				fb.GET("/ad-accounts/:id/insights", r.perm(service.PermAnalyticsRead), r.h.Facebook.LiveInsights)
				fb.POST("/ad-accounts/:id/sync-jobs", r.perm(service.PermAdAccountsWrite), r.h.Facebook.CreateSyncJob)
				fb.GET("/ad-library/search", r.perm(service.PermAdLibraryRead), r.h.Facebook.SearchAdLibrary)
				fb.GET("/ad-library/ads/:id", r.perm(service.PermAdLibraryRead), r.h.Facebook.ArchivedAd)
				fb.GET("/sync-jobs/:id", r.h.Facebook.GetSyncJob)
			}

			adAccounts := authenticated.Group("/ad-accounts")
			{
				adAccounts.GET("", r.perm(service.PermAdAccountsRead), r.h.AdAccount.List)
				adAccounts.GET("/:id", r.perm(service.PermAdAccountsRead), r.h.AdAccount.Get)
				adAccounts.PUT("/:id", r.perm(service.PermAdAccountsWrite), r.h.AdAccount.Update)
				adAccounts.GET("/:id/campaigns", r.perm(service.PermCampaignsRead), r.h.AdAccount.Campaigns)
				adAccounts.GET("/:id/insights", r.perm(service.PermAnalyticsRead), r.h.AdAccount.Insights)
				adAccounts.GET("/:id/users", r.perm(service.PermAdAccountsRead), r.h.AdAccount.Users)
			}

			campaigns := authenticated.Group("/campaigns")
			{
				campaigns.GET("", r.perm(service.PermCampaignsRead), r.h.Campaign.List)
				campaigns.POST("", r.perm(service.PermCampaignsWrite), r.h.Campaign.Create)
				campaigns.GET("/:id", r.perm(service.PermCampaignsRead), r.h.Campaign.Get)
				campaigns.PUT("/:id", r.perm(service.PermCampaignsWrite), r.h.Campaign.Update)
				campaigns.DELETE("/:id", r.perm(service.PermCampaignsDelete), r.h.Campaign.Delete)
				campaigns.GET("/:id/adsets", r.perm(service.PermCampaignsRead), r.h.Campaign.AdSets)
				campaigns.GET("/:id/insights", r.perm(service.PermAnalyticsRead), r.h.Campaign.Insights)
			}

			insights := authenticated.Group("/insights")
			insights.Use(r.perm(service.PermAnalyticsRead))
			{
				insights.GET("", r.h.Insight.List)
				insights.GET("/performance", r.h.Insight.Performance)
				insights.GET("/demographics", r.h.Insight.Demographics)
				insights.GET("/placements", r.h.Insight.Placements)
				insights.GET("/devices", r.h.Insight.Devices)
				insights.POST("/export", r.perm(service.PermAnalyticsExport), r.h.Insight.Export)
			}

			library := authenticated.Group("/ad-library/collections")
			{
				library.GET("", r.perm(service.PermAdLibraryRead), r.h.AdLibrary.ListCollections)
				library.POST("", r.perm(service.PermAdLibraryWrite), r.h.AdLibrary.CreateCollection)
				library.GET("/:id", r.h.AdLibrary.GetCollection)
				library.PUT("/:id", r.perm(service.PermAdLibraryWrite), r.h.AdLibrary.UpdateCollection)
				library.DELETE("/:id", r.perm(service.PermAdLibraryWrite), r.h.AdLibrary.DeleteCollection)
				library.POST("/:id/ads", r.perm(service.PermAdLibraryWrite), r.h.AdLibrary.AddAd)
				library.DELETE("/:id/ads/:adId", r.h.AdLibrary.RemoveAd)
			}

			payments := authenticated.Group("/payments")
			{
				payments.GET("/plans", r.h.Payment.Plans)
				payments.GET("/subscription", r.h.Payment.Subscription)
				payments.POST("/create-checkout-session", r.h.Payment.CreateCheckoutSession)
				payments.POST("/cancel-subscription", r.perm(service.PermSubscriptionsWrite), r.h.Payment.CancelSubscription)
				payments.GET("/billing-history", r.h.Payment.BillingHistory)
				payments.POST("/update-payment-method", r.perm(service.PermSubscriptionsWrite), r.h.Payment.UpdatePaymentMethod)
			}
		}
	}

	return engine
}
