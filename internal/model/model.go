package model

import (
	"context"
	"fmt"
	"log"

	"slidecraft-backend/internal/config"
	"slidecraft-backend/internal/utils"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/qwen"
	einoModel "github.com/cloudwego/eino/components/model"
)

// NewEditModel 创建幻灯片编辑使用的文本模型
// 低温度 + 限定输出长度，优先保证输出格式合规而不是创造性
func NewEditModel(ctx context.Context) einoModel.ChatModel {
	cfg := config.Get()

	switch cfg.Model.Provider {
	case "gemini", "openai":
		return createOpenAICompatModel(ctx, cfg.Gemini)
	case "doubao":
		return createDoubaoModel(ctx, cfg.Doubao)
	case "qwen":
		return createQwenModel(ctx, cfg.Qwen)
	default:
		log.Fatalf("Unsupported model provider: %s", cfg.Model.Provider)
		return nil
	}
}

func createOpenAICompatModel(ctx context.Context, cfg config.GeminiConfig) einoModel.ChatModel {
	if len(cfg.APIKey) > 10 {
		fmt.Printf("Using model: %s, API Key: %s...\n", cfg.Model, cfg.APIKey[:10])
	} else {
		fmt.Printf("Using model: %s\n", cfg.Model)
	}

	chatModel, err := newOpenAIChatModel(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create chat model: %v", err)
	}

	return chatModel
}

func createDoubaoModel(ctx context.Context, cfg config.DoubaoConfig) einoModel.ChatModel {
	fmt.Printf("Using Doubao Model: %s\n", cfg.Model)

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
		CustomHeader: map[string]string{
			"X-Ark-Thinking-Mode": "disable",
		},
	})

	if err != nil {
		log.Fatalf("Failed to create Doubao model: %v", err)
	}

	return chatModel
}

func createQwenModel(ctx context.Context, cfg config.QwenConfig) einoModel.ChatModel {
	fmt.Printf("Using Qwen Model: %s, BaseURL: %s\n", cfg.Model, cfg.BaseURL)

	chatModel, err := qwen.NewChatModel(ctx, &qwen.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
		TopP:        &cfg.TopP,
		Timeout:     cfg.Timeout,
		HTTPClient:  utils.NewHTTPClient(cfg.Timeout),
	})

	if err != nil {
		log.Fatalf("Failed to create Qwen model: %v", err)
	}

	return chatModel
}
