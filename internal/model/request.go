package model

type CreateEditSessionRequest struct {
	Slide   Slide       `json:"slide" binding:"required"`
	Context EditContext `json:"context"`
}

type AddCommentRequest struct {
	SessionID   string `json:"session_id" binding:"required"`
	SectionType string `json:"section_type" binding:"required"`
	SectionID   string `json:"section_id"`
	Comment     string `json:"comment" binding:"required,min=5,max=500"`
	Priority    string `json:"priority"` // 默认 medium
}

// ApplyEditRequest 触发一次编辑：对会话中累积的评论批量应用
type ApplyEditRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	// 可选：直接携带评论，绕过会话中的待提交集合（便于一次性调用）
	Comments []Comment `json:"comments"`
}

type PromoteAssetsRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	LessonID  string `json:"lesson_id" binding:"required"`
}
