package editor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"slidecraft-backend/internal/utils"
	"slidecraft-backend/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Model Client：带重试的文本模型调用。
// 只有供应商明确的瞬时失败（过载、限流等）才重试，其余错误立刻上抛。
// 对外部而言是at-least-once语义，歧义失败可能产生重复计费

// ModelClient 文本模型调用封装
type ModelClient struct {
	chatModel        einoModel.BaseChatModel
	transientMarkers []string
	policy           utils.RetryPolicy
}

// NewModelClient transientMarkers为瞬时错误判定子串（大小写不敏感）。
// 供应商的错误措辞并不稳定，这个判定是已知的脆弱点，按部署情况配置
func NewModelClient(chatModel einoModel.BaseChatModel, maxRetries int, initialBackoff time.Duration, transientMarkers []string) *ModelClient {
	c := &ModelClient{
		chatModel:        chatModel,
		transientMarkers: transientMarkers,
	}
	c.policy = utils.RetryPolicy{
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		Retryable:      c.isTransient,
	}
	return c
}

// Call 发送提示词，返回模型的原始文本输出
func (c *ModelClient) Call(ctx context.Context, prompt string) (string, error) {
	var raw string
	attempts := 0

	err := c.policy.Do(ctx, "文本模型", func() error {
		attempts++
		resp, genErr := c.chatModel.Generate(ctx, []*schema.Message{
			{Role: schema.User, Content: prompt},
		})
		if genErr != nil {
			return genErr
		}
		if resp == nil || resp.Content == "" {
			return fmt.Errorf("model returned empty response")
		}
		raw = resp.Content
		return nil
	})

	if err != nil {
		return "", &ProviderError{Attempts: attempts, Err: err}
	}

	logger.Debugf("模型响应长度: %d", len(raw))
	return raw, nil
}

// isTransient 判定错误是否可能在重试后成功
func (c *ModelClient) isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range c.transientMarkers {
		if strings.Contains(msg, strings.ToLower(marker)) {
			return true
		}
	}
	// 空响应视为瞬时
	return strings.Contains(msg, "empty response")
}
