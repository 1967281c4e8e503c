package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/api/middleware"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/billing"
	"github.com/qs3c/fbads_go_server/internal/pkg/metrics"
	"github.com/qs3c/fbads_go_server/internal/pkg/response"
	"github.com/qs3c/fbads_go_server/internal/service"
)

// Stripe 单个事件不会超过 64KB
const maxWebhookBody = 64 << 10

// idempotencyHeader 客户端重试结账时携带同一个值
const idempotencyHeader = "Idempotency-Key"

type PaymentHandler struct {
	paymentService *service.PaymentService
	webhookService *service.WebhookService
	provider       billing.Provider
}

// NewPaymentHandler provider 为 nil 时 webhook 返回 503
func NewPaymentHandler(paymentService *service.PaymentService, webhookService *service.WebhookService, provider billing.Provider) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		webhookService: webhookService,
		provider:       provider,
	}
}

// Plans 套餐列表
// GET /api/v1/payments/plans
func (h *PaymentHandler) Plans(c *gin.Context) {
	plans, err := h.paymentService.Plans(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, plans)
}

// Subscription 当前订阅，没有时 data 为 null
// GET /api/v1/payments/subscription
func (h *PaymentHandler) Subscription(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	sub, err := h.paymentService.CurrentSubscription(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, sub)
}

// CreateCheckoutSession 创建结账会话
// POST /api/v1/payments/create-checkout-session
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.paymentService.CreateCheckout(c.Request.Context(), userID, req.PlanID, c.GetHeader(idempotencyHeader))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, resp)
}

// CancelSubscription 取消订阅
// POST /api/v1/payments/cancel-subscription
func (h *PaymentHandler) CancelSubscription(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	sub, err := h.paymentService.Cancel(c.Request.Context(), userID, req.SubscriptionID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.SuccessWithMessage(c, "订阅已取消", sub)
}

// BillingHistory 账单记录
// GET /api/v1/payments/billing-history
func (h *PaymentHandler) BillingHistory(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	invoices, err := h.paymentService.BillingHistory(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, invoices)
}

// UpdatePaymentMethod 创建 SetupIntent
// POST /api/v1/payments/update-payment-method
func (h *PaymentHandler) UpdatePaymentMethod(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.paymentService.UpdatePaymentMethod(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, resp)
}

// Webhook Stripe 回调，签名无效返回 400，事件处理失败只记录日志
// POST /api/v1/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	if h.provider == nil {
		response.UnavailableError(c, "支付功能未配置")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.ParamError(c, "读取请求体失败")
		return
	}

	event, err := h.provider.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("stripe webhook signature rejected")
		metrics.WebhookEventsTotal.WithLabelValues("unverified", metrics.OutcomeRejected).Inc()
		response.ParamError(c, "签名校验失败")
		return
	}

	_ = h.webhookService.HandleEvent(c.Request.Context(), event)

	c.JSON(http.StatusOK, gin.H{"received": true})
}
