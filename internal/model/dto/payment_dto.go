package dto

import "time"

// CheckoutRequest 创建结账会话
type CheckoutRequest struct {
	PlanID int64 `json:"plan_id" binding:"required"`
}

// CheckoutResponse 结账会话
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CancelSubscriptionRequest 取消订阅
type CancelSubscriptionRequest struct {
	SubscriptionID int64 `json:"subscription_id" binding:"required"`
}

// InvoiceInfo 账单条目
type InvoiceInfo struct {
	ID               string    `json:"id"`
	Number           string    `json:"number"`
	Status           string    `json:"status"`
	Currency         string    `json:"currency"`
	AmountDue        float64   `json:"amount_due"`
	AmountPaid       float64   `json:"amount_paid"`
	HostedInvoiceURL string    `json:"hosted_invoice_url"`
	InvoicePDF       string    `json:"invoice_pdf"`
	Created          time.Time `json:"created"`
}

// SetupIntentResponse 更新支付方式
type SetupIntentResponse struct {
	ClientSecret string `json:"client_secret"`
}
