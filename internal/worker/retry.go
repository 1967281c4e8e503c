package worker

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qs3c/fbads_go_server/internal/model"
	"github.com/qs3c/fbads_go_server/internal/pkg/facebook"
	"github.com/qs3c/fbads_go_server/internal/service"
)

const defaultMaxRetries = 2

// 首次重试前的等待时间，之后指数退避
var retryBaseDelay = time.Second

// SyncError 同步错误，包含用户可读消息和原始错误
type SyncError struct {
	UserMessage string // 中文，给用户看
	RawError    error  // 原始错误，写日志
	Transient   bool
}

func (e *SyncError) Error() string {
	return e.UserMessage
}

func (e *SyncError) Unwrap() error {
	return e.RawError
}

// Graph 限流类错误码
func isRateLimited(code int) bool {
	switch code {
	case 4, 17, 32, 613, 80004:
		return true
	}
	return false
}

// classifySyncError 根据错误类型给出中文提示，并判断是否值得重试
func classifySyncError(err error) *SyncError {
	var se *SyncError
	if errors.As(err, &se) {
		return se
	}

	var apiErr *facebook.APIError
	isAPIErr := errors.As(err, &apiErr)

	switch {
	case errors.Is(err, service.ErrFacebookNotConnected),
		isAPIErr && apiErr.IsTokenError():
		return &SyncError{UserMessage: "Facebook 授权已失效，请重新连接账户", RawError: err}
	case errors.Is(err, service.ErrAdAccountNotFound):
		return &SyncError{UserMessage: "广告账户不存在或已删除", RawError: err}
	case errors.Is(err, service.ErrInvalidSyncKind):
		return &SyncError{UserMessage: "不支持的同步类型", RawError: err}
	case isAPIErr && isRateLimited(apiErr.Code):
		return &SyncError{UserMessage: "Facebook 接口调用过于频繁，请稍后重试", RawError: err, Transient: true}
	case isAPIErr && apiErr.StatusCode >= http.StatusInternalServerError:
		return &SyncError{UserMessage: "Facebook 服务暂时不可用，请稍后重试", RawError: err, Transient: true}
	case isAPIErr:
		return &SyncError{UserMessage: "Facebook 拒绝了同步请求", RawError: err}
	case errors.Is(err, facebook.ErrTransport),
		errors.Is(err, context.DeadlineExceeded):
		return &SyncError{UserMessage: "连接 Facebook 超时，请稍后重试", RawError: err, Transient: true}
	default:
		return &SyncError{UserMessage: "同步失败，请稍后重试", RawError: err}
	}
}

// syncWithRetry 带重试的同步，指数退避，非暂时性错误不重试
func syncWithRetry(ctx context.Context, syncer Syncer, job *model.SyncJob, onStep service.SyncStep, maxRetries int) (int, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr *SyncError
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * retryBaseDelay
			log.Warn().Int64("job_id", job.ID).Int("attempt", attempt).Dur("backoff", backoff).Msg("retrying sync job")
			select {
			case <-ctx.Done():
				return 0, &SyncError{UserMessage: "同步已取消", RawError: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		n, err := syncer.Sync(ctx, job, onStep)
		if err == nil {
			return n, nil
		}

		lastErr = classifySyncError(err)
		if !lastErr.Transient {
			return 0, lastErr
		}
	}

	return 0, lastErr
}
