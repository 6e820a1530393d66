package model

import "time"

// Slide 一张幻灯片，编辑管线的基本单位
// HTMLContent 为完整的HTML文档（含内联样式、base64图片和图片占位注释）
type Slide struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	HTMLContent string `json:"htmlContent,omitempty"`
}

// Comment 用户对幻灯片的单条反馈
type Comment struct {
	ID          string    `json:"id"`
	SectionType string    `json:"sectionType"` // general, slide, objective, material, game, recommendation
	SectionID   string    `json:"sectionId,omitempty"`
	Comment     string    `json:"comment"` // 5-500字符
	Priority    string    `json:"priority"` // low, medium, high
	CreatedAt   time.Time `json:"createdAt"`
}

// EditContext 编辑时的课程上下文（年龄段、主题、内容语言）
type EditContext struct {
	AgeGroup string `json:"ageGroup,omitempty"`
	Topic    string `json:"topic,omitempty"`
	Language string `json:"language,omitempty"`
}

// SlideChange 模型自报的单条修改记录
type SlideChange struct {
	Section             string `json:"section"`
	ShortDescription    string `json:"shortDescription"`
	DetailedDescription string `json:"detailedDescription"`
	AppliedComment      string `json:"appliedComment,omitempty"`
}

// EditSummary 一次编辑的汇总信息
type EditSummary struct {
	TotalChanges     int      `json:"totalChanges"`
	AffectedSections []string `json:"affectedSections"`
	ImprovementAreas []string `json:"improvementAreas,omitempty"`
}

// ImageProcessingStats 图片处理统计
type ImageProcessingStats struct {
	ImagesGenerated  int      `json:"imagesGenerated"`
	ImagesKept       int      `json:"imagesKept"`
	ProcessingErrors []string `json:"processingErrors,omitempty"`
	SessionID        string   `json:"sessionId,omitempty"` // 关联本次编辑生成的临时资产
}

// EditResult 一轮编辑管线的输出
type EditResult struct {
	EditedSlide     Slide                 `json:"editedSlide"`
	Changes         []SlideChange         `json:"changes"`
	Summary         EditSummary           `json:"summary"`
	ImageProcessing *ImageProcessingStats `json:"imageProcessing,omitempty"`
}

// EditSession 一次幻灯片编辑会话：当前幻灯片 + 待提交的评论
type EditSession struct {
	ID              string     `json:"id"`
	Slide           Slide      `json:"slide"`
	Context         EditContext `json:"context"`
	PendingComments []Comment  `json:"pendingComments"`
	EditCount       int        `json:"editCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ImageAsset 临时存储中的一张生成图片
type ImageAsset struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	LessonID  string    `json:"lessonId,omitempty"` // 提升为永久存储后关联的课程
	Prompt    string    `json:"prompt"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	MimeType  string    `json:"mimeType"`
	Data      string    `json:"data"` // base64
	Model     string    `json:"model,omitempty"`
	Permanent bool      `json:"permanent"`
	CreatedAt time.Time `json:"createdAt"`
}
