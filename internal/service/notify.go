package service

import (
	"context"

	"github.com/qs3c/fbads_go_server/internal/pkg/pubsub"
)

// Notifier 推送用户事件，由 pubsub.Publisher 实现
type Notifier interface {
	PublishProgress(ctx context.Context, msg *pubsub.Message) error
	PublishSubscriptionChanged(ctx context.Context, userID, subscriptionID int64, status string) error
}

type nopNotifier struct{}

func (nopNotifier) PublishProgress(context.Context, *pubsub.Message) error { return nil }

func (nopNotifier) PublishSubscriptionChanged(context.Context, int64, int64, string) error {
	return nil
}

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
