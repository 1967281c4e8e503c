package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/model/dto"
	"github.com/qs3c/fbads_go_server/internal/pkg/apperr"
	"github.com/qs3c/fbads_go_server/internal/pkg/billing"
	"github.com/qs3c/fbads_go_server/internal/pkg/keylock"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

const billingHistoryLimit = 100

type PaymentService struct {
	subRepo  *repository.SubscriptionRepository
	userRepo *repository.UserRepository
	provider billing.Provider
	locks    *keylock.KeyLock
	notifier Notifier
	cfg      *config.Config
	now      func() time.Time
}

// NewPaymentService provider 为 nil 时支付相关接口返回 503
func NewPaymentService(
	subRepo *repository.SubscriptionRepository,
	userRepo *repository.UserRepository,
	provider billing.Provider,
	locks *keylock.KeyLock,
	notifier Notifier,
	cfg *config.Config,
) *PaymentService {
	return &PaymentService{
		subRepo:  subRepo,
		userRepo: userRepo,
		provider: provider,
		locks:    locks,
		notifier: notifierOrNop(notifier),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Plans 上架中的套餐，按价格升序
func (s *PaymentService) Plans(ctx context.Context) ([]*model.SubscriptionPlan, error) {
	return s.subRepo.ListActivePlans(ctx)
}

// CurrentSubscription 当前订阅，没有时返回 nil
func (s *PaymentService) CurrentSubscription(ctx context.Context, userID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetCurrentByUser(ctx, userID, s.now())
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

// checkoutKeyWindow 同一用户同一套餐在该窗口内重复提交复用同一个幂等键
const checkoutKeyWindow = 10 * time.Minute

// checkoutIdempotencyKey 按用户、套餐和时间窗口生成稳定的幂等键
func checkoutIdempotencyKey(userID, planID int64, now time.Time) string {
	bucket := now.UTC().Truncate(checkoutKeyWindow).Unix()
	name := fmt.Sprintf("checkout:%d:%d:%d", userID, planID, bucket)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// CreateCheckout 创建 Stripe 订阅结账会话，idempotencyKey 为空时自动生成
func (s *PaymentService) CreateCheckout(ctx context.Context, userID, planID int64, idempotencyKey string) (*dto.CheckoutResponse, error) {
	if s.provider == nil {
		return nil, ErrBillingUnavailable
	}

	plan, err := s.subRepo.GetPlanByID(ctx, planID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanNotFound
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if idempotencyKey == "" {
		idempotencyKey = checkoutIdempotencyKey(userID, plan.ID, s.now())
	}

	frontend := strings.TrimRight(s.cfg.Frontend.URL, "/")
	session, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutInput{
		UserID:         userID,
		PlanID:         plan.ID,
		PlanName:       plan.Name,
		Description:    plan.Description,
		Price:          plan.Price,
		Interval:       strings.ToLower(plan.BillingInterval),
		CustomerEmail:  user.Email,
		SuccessURL:     frontend + "/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      frontend + "/subscription/cancel",
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, providerError("stripe.create_checkout_session", err)
	}

	return &dto.CheckoutResponse{SessionID: session.ID, URL: session.URL}, nil
}

// Cancel 取消自己的订阅：先取消 Stripe 订阅，再把本地记录置为 CANCELED
func (s *PaymentService) Cancel(ctx context.Context, userID, subscriptionID int64) (*model.Subscription, error) {
	sub, err := s.subRepo.GetByID(ctx, subscriptionID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrSubscriptionNotFound
	}
	if sub.Status == model.SubscriptionCanceled {
		return nil, ErrSubscriptionCanceled
	}
	if s.provider == nil {
		return nil, ErrBillingUnavailable
	}

	if sub.StripeSubscriptionID != "" {
		release, err := s.locks.Lock(ctx, sub.StripeSubscriptionID)
		if err != nil {
			return nil, err
		}
		defer release()

		if err := s.provider.CancelSubscription(ctx, sub.StripeSubscriptionID); err != nil {
			return nil, providerError("stripe.cancel_subscription", err)
		}
	}

	now := s.now().UTC()
	err = s.subRepo.UpdateFields(ctx, sub.ID, map[string]interface{}{
		"status":   model.SubscriptionCanceled,
		"end_date": now,
	})
	if err != nil {
		return nil, err
	}
	sub.Status = model.SubscriptionCanceled
	sub.EndDate = &now

	if err := s.notifier.PublishSubscriptionChanged(ctx, userID, sub.ID, sub.Status); err != nil {
		log.Warn().Err(err).Int64("subscription_id", sub.ID).Msg("publish subscription change failed")
	}
	return sub, nil
}

// BillingHistory 最近一条订阅对应客户的账单
func (s *PaymentService) BillingHistory(ctx context.Context, userID int64) ([]dto.InvoiceInfo, error) {
	latest, err := s.subRepo.GetLatestByUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return []dto.InvoiceInfo{}, nil
		}
		return nil, err
	}
	if latest.StripeCustomerID == "" {
		return []dto.InvoiceInfo{}, nil
	}
	if s.provider == nil {
		return nil, ErrBillingUnavailable
	}

	invoices, err := s.provider.ListInvoices(ctx, latest.StripeCustomerID, billingHistoryLimit)
	if err != nil {
		return nil, providerError("stripe.list_invoices", err)
	}

	out := make([]dto.InvoiceInfo, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, dto.InvoiceInfo{
			ID:               inv.ID,
			Number:           inv.Number,
			Status:           inv.Status,
			Currency:         inv.Currency,
			AmountDue:        float64(inv.AmountDue) / 100,
			AmountPaid:       float64(inv.AmountPaid) / 100,
			HostedInvoiceURL: inv.HostedInvoiceURL,
			InvoicePDF:       inv.InvoicePDF,
			Created:          inv.Created,
		})
	}
	return out, nil
}

// UpdatePaymentMethod 为生效订阅的客户创建 SetupIntent
func (s *PaymentService) UpdatePaymentMethod(ctx context.Context, userID int64) (*dto.SetupIntentResponse, error) {
	sub, err := s.subRepo.GetActiveByUser(ctx, userID, s.now())
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	if sub.StripeCustomerID == "" {
		return nil, ErrNoActiveSubscription
	}
	if s.provider == nil {
		return nil, ErrBillingUnavailable
	}

	secret, err := s.provider.CreateSetupIntent(ctx, sub.StripeCustomerID)
	if err != nil {
		return nil, providerError("stripe.create_setup_intent", err)
	}
	return &dto.SetupIntentResponse{ClientSecret: secret}, nil
}

func providerError(op string, err error) error {
	if errors.Is(err, billing.ErrNotConfigured) {
		return ErrBillingUnavailable
	}
	return apperr.Upstream(op, err)
}
