package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
)

// 处理的事件类型
const (
	EventCheckoutCompleted    = "checkout.session.completed"
	EventSubscriptionUpdated  = "customer.subscription.updated"
	EventSubscriptionDeleted  = "customer.subscription.deleted"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventInvoicePaid          = "invoice.paid"
)

// ExpandableID 兼容字符串 ID 和展开后的对象 {"id": "..."}
type ExpandableID string

func (e *ExpandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = ExpandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = ExpandableID(obj.ID)
	return nil
}

func (e ExpandableID) String() string { return string(e) }

// CheckoutSessionObject checkout.session.completed 的 data.object
type CheckoutSessionObject struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          ExpandableID      `json:"customer"`
	Subscription      ExpandableID      `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// UserID 从 metadata.userId 或 client_reference_id 解析用户
func (s *CheckoutSessionObject) UserID() (int64, error) {
	raw := s.Metadata["userId"]
	if raw == "" {
		raw = s.ClientReferenceID
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("billing: checkout session %s has no valid userId", s.ID)
	}
	return id, nil
}

// PlanID 从 metadata.planId 解析套餐
func (s *CheckoutSessionObject) PlanID() (int64, error) {
	id, err := strconv.ParseInt(s.Metadata["planId"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("billing: checkout session %s has no valid planId", s.ID)
	}
	return id, nil
}

// SubscriptionObject customer.subscription.* 的 data.object
type SubscriptionObject struct {
	ID         string       `json:"id"`
	Customer   ExpandableID `json:"customer"`
	Status     string       `json:"status"`
	CanceledAt int64        `json:"canceled_at"`
	EndedAt    int64        `json:"ended_at"`
}

// InvoiceObject invoice.* 的 data.object
type InvoiceObject struct {
	ID           string       `json:"id"`
	Customer     ExpandableID `json:"customer"`
	Subscription ExpandableID `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription ExpandableID `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID 新版 API 将订阅 ID 移到 parent.subscription_details 下
func (i *InvoiceObject) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription.String()
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription.String()
	}
	return ""
}

// DecodeObject 解析事件 data.object
func DecodeObject(event *stripe.Event, out interface{}) error {
	if event == nil || event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("billing: event has no data object")
	}
	if err := json.Unmarshal(event.Data.Raw, out); err != nil {
		return fmt.Errorf("billing: decode %s: %w", event.Type, err)
	}
	return nil
}

// EventTime 事件创建时间
func EventTime(event *stripe.Event) time.Time {
	if event == nil || event.Created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(event.Created, 0).UTC()
}
