package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	stripe "github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"

	"github.com/qs3c/fbads_go_server/config"
	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/pkg/billing"
	"github.com/qs3c/fbads_go_server/internal/pkg/keylock"
	"github.com/qs3c/fbads_go_server/internal/pkg/metrics"
	"github.com/qs3c/fbads_go_server/internal/repository"
)

// subscriptionChange 事务提交后需要推送的状态变更
type subscriptionChange struct {
	UserID         int64
	SubscriptionID int64
	Status         string
	PlanID         int64
}

type WebhookService struct {
	db       *gorm.DB
	subRepo  *repository.SubscriptionRepository
	rbacRepo *repository.RBACRepository
	userRepo *repository.UserRepository
	locks    *keylock.KeyLock
	notifier Notifier
	mailer   Mailer
	cfg      *config.Config
	now      func() time.Time
}

func NewWebhookService(
	db *gorm.DB,
	subRepo *repository.SubscriptionRepository,
	rbacRepo *repository.RBACRepository,
	userRepo *repository.UserRepository,
	locks *keylock.KeyLock,
	notifier Notifier,
	mailer Mailer,
	cfg *config.Config,
) *WebhookService {
	return &WebhookService{
		db:       db,
		subRepo:  subRepo,
		rbacRepo: rbacRepo,
		userRepo: userRepo,
		locks:    locks,
		notifier: notifierOrNop(notifier),
		mailer:   mailer,
		cfg:      cfg,
		now:      time.Now,
	}
}

// HandleEvent 处理已验签的 Stripe 事件，未知订阅和过期事件不报错
func (s *WebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil {
		return fmt.Errorf("nil event")
	}
	eventType := string(event.Type)
	logger := log.With().Str("event_id", event.ID).Str("event_type", eventType).Logger()

	var (
		change  *subscriptionChange
		outcome string
		err     error
	)
	switch eventType {
	case billing.EventCheckoutCompleted:
		change, outcome, err = s.checkoutCompleted(ctx, event)
	case billing.EventSubscriptionUpdated:
		change, outcome, err = s.subscriptionUpdated(ctx, event)
	case billing.EventSubscriptionDeleted:
		change, outcome, err = s.subscriptionDeleted(ctx, event)
	case billing.EventInvoicePaymentFailed:
		change, outcome, err = s.invoicePaymentFailed(ctx, event)
	case billing.EventInvoicePaid:
		change, outcome, err = s.invoicePaid(ctx, event)
	default:
		logger.Debug().Msg("unhandled stripe event")
		outcome = metrics.OutcomeIgnored
	}

	if err != nil {
		outcome = metrics.OutcomeFailed
		logger.Error().Err(err).Msg("stripe event processing failed")
	} else {
		logger.Info().Str("outcome", outcome).Msg("stripe event handled")
	}
	metrics.WebhookEventsTotal.WithLabelValues(eventType, outcome).Inc()

	if change != nil {
		s.notify(ctx, eventType, change)
	}
	return err
}

func (s *WebhookService) notify(ctx context.Context, eventType string, change *subscriptionChange) {
	if err := s.notifier.PublishSubscriptionChanged(ctx, change.UserID, change.SubscriptionID, change.Status); err != nil {
		log.Warn().Err(err).Int64("subscription_id", change.SubscriptionID).Msg("publish subscription change failed")
	}

	if eventType != billing.EventInvoicePaymentFailed || s.mailer == nil || !s.mailer.Configured() {
		return
	}
	user, err := s.userRepo.GetByID(ctx, change.UserID)
	if err != nil {
		log.Warn().Err(err).Int64("user_id", change.UserID).Msg("load user for payment failed email")
		return
	}
	planName := ""
	if plan, err := s.subRepo.GetPlanByID(ctx, change.PlanID); err == nil {
		planName = plan.Name
	}
	link := strings.TrimRight(s.cfg.Frontend.URL, "/") + "/billing"
	if err := s.mailer.SendPaymentFailed(user.Email, planName, link); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("send payment failed email failed")
	}
}

// withSubscriptionLock 同一 Stripe 订阅的事件串行处理
func (s *WebhookService) withSubscriptionLock(ctx context.Context, key string, fn func(tx *gorm.DB) error) error {
	release, err := s.locks.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer release()

	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *WebhookService) checkoutCompleted(ctx context.Context, event *stripe.Event) (*subscriptionChange, string, error) {
	var session billing.CheckoutSessionObject
	if err := billing.DecodeObject(event, &session); err != nil {
		return nil, "", err
	}
	if session.Mode != "" && session.Mode != "subscription" {
		return nil, metrics.OutcomeIgnored, nil
	}

	userID, err := session.UserID()
	if err != nil {
		return nil, "", err
	}
	planID, err := session.PlanID()
	if err != nil {
		return nil, "", err
	}

	key := session.Subscription.String()
	if key == "" {
		key = "checkout:" + session.ID
	}
	eventAt := billing.EventTime(event)

	var change *subscriptionChange
	outcome := metrics.OutcomeIgnored
	err = s.withSubscriptionLock(ctx, key, func(tx *gorm.DB) error {
		subRepo := s.subRepo.WithTx(tx)

		seen, err := subRepo.ExistsByCheckoutSession(ctx, session.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}

		if _, err := s.userRepo.WithTx(tx).GetByID(ctx, userID); err != nil {
			return fmt.Errorf("checkout user %d: %w", userID, err)
		}
		if _, err := subRepo.GetPlanByID(ctx, planID); err != nil {
			return fmt.Errorf("checkout plan %d: %w", planID, err)
		}

		now := s.now().UTC()
		sessionID := session.ID
		sub := &model.Subscription{
			UserID:                  userID,
			PlanID:                  planID,
			StripeSubscriptionID:    session.Subscription.String(),
			StripeCustomerID:        session.Customer.String(),
			StripeCheckoutSessionID: &sessionID,
			Status:                  model.SubscriptionActive,
			StartDate:               now,
			LastEventAt:             &eventAt,
		}
		if err := subRepo.Create(ctx, sub); err != nil {
			return err
		}
		if _, err := subRepo.EndCurrentForUser(ctx, userID, sub.ID, now); err != nil {
			return err
		}
		if err := grantRoleByName(ctx, s.rbacRepo.WithTx(tx), userID, model.RolePaidUser); err != nil {
			return err
		}

		outcome = metrics.OutcomeProcessed
		change = &subscriptionChange{UserID: userID, SubscriptionID: sub.ID, Status: sub.Status, PlanID: planID}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return change, outcome, nil
}

func (s *WebhookService) subscriptionUpdated(ctx context.Context, event *stripe.Event) (*subscriptionChange, string, error) {
	var obj billing.SubscriptionObject
	if err := billing.DecodeObject(event, &obj); err != nil {
		return nil, "", err
	}

	status := model.SubscriptionInactive
	if obj.Status == "active" || obj.Status == "trialing" {
		status = model.SubscriptionActive
	}

	return s.transition(ctx, obj.ID, billing.EventTime(event), func(sub *model.Subscription) (map[string]interface{}, bool) {
		if sub.Status == model.SubscriptionCanceled {
			return nil, false
		}
		return map[string]interface{}{"status": status}, true
	})
}

func (s *WebhookService) subscriptionDeleted(ctx context.Context, event *stripe.Event) (*subscriptionChange, string, error) {
	var obj billing.SubscriptionObject
	if err := billing.DecodeObject(event, &obj); err != nil {
		return nil, "", err
	}
	if obj.ID == "" {
		return nil, metrics.OutcomeIgnored, nil
	}
	eventAt := billing.EventTime(event)
	endDate := eventAt
	if obj.CanceledAt > 0 {
		endDate = time.Unix(obj.CanceledAt, 0).UTC()
	}

	var change *subscriptionChange
	outcome := metrics.OutcomeIgnored
	err := s.withSubscriptionLock(ctx, obj.ID, func(tx *gorm.DB) error {
		subRepo := s.subRepo.WithTx(tx)
		sub, err := subRepo.GetByStripeIDForUpdate(ctx, obj.ID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}

		err = subRepo.UpdateFields(ctx, sub.ID, map[string]interface{}{
			"status":        model.SubscriptionCanceled,
			"end_date":      endDate,
			"last_event_at": laterOf(sub.LastEventAt, eventAt),
		})
		if err != nil {
			return err
		}

		others, err := subRepo.CountActiveExcept(ctx, sub.UserID, sub.ID, s.now().UTC())
		if err != nil {
			return err
		}
		if others == 0 {
			rbacRepo := s.rbacRepo.WithTx(tx)
			if err := revokeRoleByName(ctx, rbacRepo, sub.UserID, model.RolePaidUser); err != nil {
				return err
			}
			if err := grantRoleByName(ctx, rbacRepo, sub.UserID, model.RoleFreeUser); err != nil {
				return err
			}
		}

		outcome = metrics.OutcomeProcessed
		change = &subscriptionChange{UserID: sub.UserID, SubscriptionID: sub.ID, Status: model.SubscriptionCanceled, PlanID: sub.PlanID}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return change, outcome, nil
}

func (s *WebhookService) invoicePaymentFailed(ctx context.Context, event *stripe.Event) (*subscriptionChange, string, error) {
	var obj billing.InvoiceObject
	if err := billing.DecodeObject(event, &obj); err != nil {
		return nil, "", err
	}

	return s.transition(ctx, obj.SubscriptionID(), billing.EventTime(event), func(sub *model.Subscription) (map[string]interface{}, bool) {
		if sub.Status == model.SubscriptionCanceled || sub.Status == model.SubscriptionPaymentFailed {
			return nil, false
		}
		return map[string]interface{}{"status": model.SubscriptionPaymentFailed}, true
	})
}

func (s *WebhookService) invoicePaid(ctx context.Context, event *stripe.Event) (*subscriptionChange, string, error) {
	var obj billing.InvoiceObject
	if err := billing.DecodeObject(event, &obj); err != nil {
		return nil, "", err
	}

	return s.transition(ctx, obj.SubscriptionID(), billing.EventTime(event), func(sub *model.Subscription) (map[string]interface{}, bool) {
		if sub.Status != model.SubscriptionPaymentFailed && sub.Status != model.SubscriptionInactive {
			return nil, false
		}
		return map[string]interface{}{"status": model.SubscriptionActive}, true
	})
}

// transition 对已知订阅做一次状态变更；未知订阅、过期事件或 apply 返回 false 时忽略
func (s *WebhookService) transition(
	ctx context.Context,
	stripeID string,
	eventAt time.Time,
	apply func(sub *model.Subscription) (map[string]interface{}, bool),
) (*subscriptionChange, string, error) {
	if stripeID == "" {
		return nil, metrics.OutcomeIgnored, nil
	}

	var change *subscriptionChange
	outcome := metrics.OutcomeIgnored
	err := s.withSubscriptionLock(ctx, stripeID, func(tx *gorm.DB) error {
		subRepo := s.subRepo.WithTx(tx)
		sub, err := subRepo.GetByStripeIDForUpdate(ctx, stripeID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		if sub.LastEventAt != nil && eventAt.Before(*sub.LastEventAt) {
			log.Debug().Str("stripe_subscription_id", stripeID).Msg("stale stripe event skipped")
			return nil
		}

		fields, ok := apply(sub)
		if !ok {
			return nil
		}
		fields["last_event_at"] = eventAt
		if err := subRepo.UpdateFields(ctx, sub.ID, fields); err != nil {
			return err
		}

		status, _ := fields["status"].(string)
		if status == "" {
			status = sub.Status
		}
		outcome = metrics.OutcomeProcessed
		change = &subscriptionChange{UserID: sub.UserID, SubscriptionID: sub.ID, Status: status, PlanID: sub.PlanID}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return change, outcome, nil
}

// revokeRoleByName 按名称撤销角色，角色未初始化时跳过
func revokeRoleByName(ctx context.Context, rbacRepo *repository.RBACRepository, userID int64, name string) error {
	role, err := rbacRepo.GetRoleByName(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	return rbacRepo.RevokeRole(ctx, userID, role.ID)
}

func laterOf(prev *time.Time, t time.Time) time.Time {
	if prev != nil && prev.After(t) {
		return *prev
	}
	return t
}
