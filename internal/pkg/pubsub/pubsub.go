package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelUserEvents = "fbads_user_events"
)

// 消息类型
const (
	TypeSyncProgress        = "sync_progress"
	TypeSubscriptionChanged = "subscription_changed"
)

// Message 推送给用户的事件，按 UserID 路由到 websocket
type Message struct {
	Type           string `json:"type"`
	UserID         int64  `json:"user_id"`
	JobID          int64  `json:"job_id,omitempty"`
	AdAccountID    int64  `json:"ad_account_id,omitempty"`
	Kind           string `json:"kind,omitempty"`
	SubscriptionID int64  `json:"subscription_id,omitempty"`
	Status         string `json:"status"`
	Step           string `json:"step,omitempty"`
	Progress       int    `json:"progress,omitempty"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// 同步阶段
const (
	StepFetching = "fetching"
	StepSaving   = "saving"
	StepDone     = "done"
)

// 阶段对应的进度百分比
var StepProgress = map[string]int{
	StepFetching: 30,
	StepSaving:   70,
	StepDone:     100,
}

// 阶段对应的消息
var StepMessages = map[string]string{
	StepFetching: "正在从 Facebook 拉取数据",
	StepSaving:   "正在保存数据",
	StepDone:     "同步完成",
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布同步进度
func (p *Publisher) PublishProgress(ctx context.Context, msg *Message) error {
	msg.Type = TypeSyncProgress

	// 自动填充进度和消息
	if msg.Progress == 0 && msg.Step != "" {
		if progress, ok := StepProgress[msg.Step]; ok {
			msg.Progress = progress
		}
	}
	if msg.Message == "" && msg.Step != "" {
		if message, ok := StepMessages[msg.Step]; ok {
			msg.Message = message
		}
	}

	return p.publish(ctx, msg)
}

// PublishSubscriptionChanged 发布订阅状态变更
func (p *Publisher) PublishSubscriptionChanged(ctx context.Context, userID, subscriptionID int64, status string) error {
	return p.publish(ctx, &Message{
		Type:           TypeSubscriptionChanged,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Status:         status,
	})
}

func (p *Publisher) publish(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return p.client.Publish(ctx, ChannelUserEvents, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅用户事件，阻塞直到 ctx 结束
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*Message)) error {
	ps := s.client.Subscribe(ctx, ChannelUserEvents)
	defer ps.Close()

	// 确认订阅成功后再进入循环
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := ps.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				continue // 忽略解析错误
			}

			handler(&m)
		}
	}
}
