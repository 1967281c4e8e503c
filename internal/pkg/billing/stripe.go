package billing

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/setupintent"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider 基于 Stripe API 的 Provider 实现
type StripeProvider struct {
	apiKey        string
	webhookSecret string
}

func NewStripeProvider(apiKey, webhookSecret string) *StripeProvider {
	if apiKey != "" {
		stripe.Key = apiKey
	}
	return &StripeProvider{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
	}
}

func (p *StripeProvider) configured() error {
	if strings.TrimSpace(p.apiKey) == "" {
		return ErrNotConfigured
	}
	return nil
}

// CreateCheckoutSession 创建订阅模式的结账会话
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, in CheckoutInput) (*CheckoutSession, error) {
	if err := p.configured(); err != nil {
		return nil, err
	}

	s, err := stripesession.New(checkoutParams(ctx, in))
	if err != nil {
		return nil, fmt.Errorf("billing: create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func checkoutParams(ctx context.Context, in CheckoutInput) *stripe.CheckoutSessionParams {
	interval := strings.ToLower(in.Interval)
	if interval != "year" {
		interval = "month"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(strconv.FormatInt(in.UserID, 10)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String("usd"),
					UnitAmount: stripe.Int64(ToCents(in.Price)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(in.PlanName),
						Description: stripe.String(in.Description),
					},
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(interval),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"userId": strconv.FormatInt(in.UserID, 10),
			"planId": strconv.FormatInt(in.PlanID, 10),
		},
	}
	if in.Description == "" {
		params.LineItems[0].PriceData.ProductData.Description = nil
	}
	if in.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(in.CustomerEmail)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}
	params.Context = ctx
	return params
}

// ToCents 美元转美分，四舍五入
func ToCents(price float64) int64 {
	return int64(math.Round(price * 100))
}

// CancelSubscription 立即取消订阅
func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if err := p.configured(); err != nil {
		return err
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("billing: cancel stripe subscription: %w", err)
	}
	return nil
}

// ListInvoices 列出客户账单，最多 limit 条
func (p *StripeProvider) ListInvoices(ctx context.Context, customerID string, limit int) ([]Invoice, error) {
	if err := p.configured(); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	params := invoiceListParams(ctx, customerID, limit)
	invoices := make([]Invoice, 0)
	it := invoice.List(params)
	for it.Next() && len(invoices) < limit {
		invoices = append(invoices, toInvoice(it.Invoice()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("billing: list invoices: %w", err)
	}
	return invoices, nil
}

func invoiceListParams(ctx context.Context, customerID string, limit int) *stripe.InvoiceListParams {
	params := &stripe.InvoiceListParams{Customer: stripe.String(customerID)}
	params.Limit = stripe.Int64(int64(limit))
	params.Context = ctx
	return params
}

func toInvoice(in *stripe.Invoice) Invoice {
	return Invoice{
		ID:               in.ID,
		Number:           in.Number,
		Status:           string(in.Status),
		Currency:         string(in.Currency),
		AmountDue:        in.AmountDue,
		AmountPaid:       in.AmountPaid,
		HostedInvoiceURL: in.HostedInvoiceURL,
		InvoicePDF:       in.InvoicePDF,
		Created:          time.Unix(in.Created, 0).UTC(),
	}
}

// CreateSetupIntent 为客户创建 SetupIntent，返回 client secret
func (p *StripeProvider) CreateSetupIntent(ctx context.Context, customerID string) (string, error) {
	if err := p.configured(); err != nil {
		return "", err
	}

	params := &stripe.SetupIntentParams{
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.Context = ctx
	si, err := setupintent.New(params)
	if err != nil {
		return "", fmt.Errorf("billing: create setup intent: %w", err)
	}
	return si.ClientSecret, nil
}

// ParseWebhook 校验 Stripe-Signature 并解析事件
func (p *StripeProvider) ParseWebhook(payload []byte, signature string) (*stripe.Event, error) {
	if strings.TrimSpace(p.webhookSecret) == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("billing: missing stripe signature")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("billing: webhook signature verification failed: %w", err)
	}
	return &event, nil
}
