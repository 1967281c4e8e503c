// Package billing 支付提供方适配层
package billing

import (
	"context"
	"errors"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
)

// ErrNotConfigured 未配置支付密钥
var ErrNotConfigured = errors.New("billing: provider not configured")

// CheckoutInput 创建订阅结账会话的参数
type CheckoutInput struct {
	UserID         int64
	PlanID         int64
	PlanName       string
	Description    string
	Price          float64 // 美元
	Interval       string  // month | year
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CheckoutSession 结账会话
type CheckoutSession struct {
	ID  string
	URL string
}

// Invoice 账单
type Invoice struct {
	ID               string
	Number           string
	Status           string
	Currency         string
	AmountDue        int64
	AmountPaid       int64
	HostedInvoiceURL string
	InvoicePDF       string
	Created          time.Time
}

// Provider 支付提供方
type Provider interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error)
	CreateSetupIntent(ctx context.Context, customerID string) (string, error)
	// ParseWebhook 校验签名并解析事件，签名无效时返回错误
	ParseWebhook(payload []byte, signature string) (*stripe.Event, error)
}
