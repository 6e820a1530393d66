package utils

import (
	"context"
	"time"

	"slidecraft-backend/pkg/logger"
)

// RetryPolicy 统一的重试策略：指数退避 + 可配置的可重试判定
// 文本模型与图片生成两处调用共用，避免两套退避逻辑各自漂移
type RetryPolicy struct {
	MaxRetries     int           // 首次之外的额外尝试次数
	InitialBackoff time.Duration // 首次退避时长，之后逐次翻倍
	Retryable      func(error) bool // 为nil时所有错误都重试
}

// Do 执行fn，失败时按策略重试。返回最后一次的错误
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	backoff := p.InitialBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxRetries {
			break
		}

		logger.Warnf("%s 调用失败，%v 后重试 (%d/%d): %v", op, backoff, attempt+1, p.MaxRetries, lastErr)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return lastErr
}
