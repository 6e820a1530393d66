package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"slidecraft-backend/internal/config"
	"slidecraft-backend/internal/utils"
	"slidecraft-backend/pkg/logger"
)

// 图片生成服务的HTTP客户端。协议：
//   请求  {prompt, width, height, model}   （prompt必须是英文，宽高为16的倍数）
//   响应  {success, image(base64), model, error}
// 重试与退避由调用方（图片处理阶段）统一控制，这里只发一次请求

type generateRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Model  string `json:"model,omitempty"`
}

type generateResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image,omitempty"`
	Model   string `json:"model,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(cfg config.ImageGenConfig) *Client {
	return &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: utils.NewHTTPClient(cfg.Timeout),
	}
}

// Generate 请求生成一张图片，返回base64数据与实际使用的模型名
func (c *Client) Generate(ctx context.Context, prompt string, width, height int) (string, string, error) {
	body, err := json.Marshal(generateRequest{
		Prompt: prompt,
		Width:  width,
		Height: height,
		Model:  c.model,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("image service returned %d: %s", resp.StatusCode, string(raw))
	}

	var genResp generateResponse
	if err := json.Unmarshal(raw, &genResp); err != nil {
		return "", "", fmt.Errorf("image service response decode failed: %w", err)
	}

	if !genResp.Success || genResp.Image == "" {
		if genResp.Error == "" {
			genResp.Error = "generation failed without detail"
		}
		return "", "", fmt.Errorf("image service error: %s", genResp.Error)
	}

	logger.Debugf("图片生成成功: %dx%d, model=%s, %d bytes base64", width, height, genResp.Model, len(genResp.Image))
	return genResp.Image, genResp.Model, nil
}
