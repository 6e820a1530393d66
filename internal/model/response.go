package model

import "time"

type EditSessionResponse struct {
	SessionID    string    `json:"session_id"`
	Slide        Slide     `json:"slide"`
	CommentCount int       `json:"comment_count"`
	EditCount    int       `json:"edit_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EditProgressEvent 编辑管线的阶段性进度（SSE推送）
type EditProgressEvent struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`  // sanitize, prompt, model, parse, restore, images, assemble
	Status    string `json:"status"` // in_progress, completed, error
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type ApplyEditResponse struct {
	SessionID string      `json:"session_id"`
	Result    *EditResult `json:"result"`
}
