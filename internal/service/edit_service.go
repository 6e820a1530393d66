package service

import (
	"context"
	"fmt"
	"time"

	"slidecraft-backend/internal/config"
	"slidecraft-backend/internal/editor"
	"slidecraft-backend/internal/imagegen"
	"slidecraft-backend/internal/model"
	"slidecraft-backend/internal/storage"
	"slidecraft-backend/pkg/logger"

	"github.com/google/uuid"
)

// TextModelCaller 文本模型调用入口，便于测试替换
type TextModelCaller interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// EditService 幻灯片编辑服务：会话与评论生命周期 + 编辑管线编排。
// 管线各阶段没有共享可变状态，同一会话的并发编辑各自操作HTML文本副本
type EditService struct {
	storage    storage.Storage
	client     TextModelCaller
	resolver   *editor.ImageResolver
	sessionCfg *config.SessionConfig
}

func NewEditService(cfg *config.Config) *EditService {
	var store storage.Storage

	if cfg.Storage.Type == "disk" {
		store = storage.NewDiskStorage(cfg.Storage.DataDir, cfg.Storage.CacheSize)
	} else {
		store = storage.NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage: %v", err)
		store = storage.NewMemoryStorage()
		store.Init()
	}

	chatModel := model.NewEditModel(context.Background())
	client := editor.NewModelClient(chatModel, cfg.Pipeline.MaxRetries, cfg.Pipeline.InitialBackoff, cfg.Pipeline.TransientMarkers)

	var assetStore editor.AssetStore
	if cfg.Storage.PublicBaseURL != "" {
		assetStore = &storageAssetStore{storage: store, baseURL: cfg.Storage.PublicBaseURL}
	}

	resolver := editor.NewImageResolver(
		imagegen.NewClient(cfg.ImageGen),
		assetStore,
		cfg.ImageGen.RequestDelay,
		cfg.ImageGen.MaxRetries,
		cfg.Pipeline.InitialBackoff,
	)

	s := &EditService{
		storage:    store,
		client:     client,
		resolver:   resolver,
		sessionCfg: &cfg.Session,
	}

	go s.cleanupLoop()

	return s
}

// NewEditServiceWith 按依赖注入构造，测试和自定义接线用
func NewEditServiceWith(store storage.Storage, client TextModelCaller, resolver *editor.ImageResolver) *EditService {
	return &EditService{
		storage:  store,
		client:   client,
		resolver: resolver,
	}
}

func (s *EditService) CreateSession(slide model.Slide, editCtx model.EditContext) (*model.EditSession, error) {
	session := &model.EditSession{
		ID:        uuid.New().String(),
		Slide:     slide,
		Context:   editCtx,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := s.storage.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

func (s *EditService) GetSession(sessionID string) (*model.EditSession, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (s *EditService) DeleteSession(sessionID string) error {
	if err := s.storage.DeleteSession(sessionID); err != nil {
		if err == storage.ErrSessionNotFound {
			return fmt.Errorf("session not found: %s", sessionID)
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (s *EditService) ListSessions() ([]*model.EditSession, error) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, nil
}

// AddComment 把一条反馈加入会话的待提交集合
func (s *EditService) AddComment(sessionID string, req model.AddCommentRequest) (*model.Comment, error) {
	priority := req.Priority
	switch priority {
	case "low", "medium", "high":
	default:
		priority = "medium"
	}

	comment := &model.Comment{
		ID:          uuid.New().String(),
		SectionType: req.SectionType,
		SectionID:   req.SectionID,
		Comment:     req.Comment,
		Priority:    priority,
		CreatedAt:   time.Now(),
	}

	if err := s.storage.AddComment(sessionID, comment); err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	return comment, nil
}

func (s *EditService) GetComments(sessionID string) ([]model.Comment, error) {
	comments, err := s.storage.GetComments(sessionID)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("session not found: %s", sessionID)
		}
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}

	return comments, nil
}

func (s *EditService) ClearComments(sessionID string) error {
	return s.storage.ClearComments(sessionID)
}

// ApplyEdit 对会话累积的评论执行一轮编辑管线。
// 成功后更新会话中的幻灯片并清空待提交评论；失败时评论原样保留
func (s *EditService) ApplyEdit(ctx context.Context, sessionID string, extraComments []model.Comment) (*model.EditResult, error) {
	return s.applyEdit(ctx, sessionID, extraComments, nil)
}

// ApplyEditWithProgress 同ApplyEdit，但通过通道推送阶段性进度
func (s *EditService) ApplyEditWithProgress(ctx context.Context, sessionID string, extraComments []model.Comment) (<-chan model.EditProgressEvent, <-chan *model.EditResult, <-chan error) {
	progressChan := make(chan model.EditProgressEvent, 32)
	resultChan := make(chan *model.EditResult, 1)
	errChan := make(chan error, 1)

	go func() {
		defer close(progressChan)
		defer close(resultChan)
		defer close(errChan)

		emit := func(stage, status, message string) {
			progressChan <- model.EditProgressEvent{
				SessionID: sessionID,
				Stage:     stage,
				Status:    status,
				Message:   message,
				Timestamp: time.Now().Unix(),
			}
		}

		result, err := s.applyEdit(ctx, sessionID, extraComments, emit)
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- result
	}()

	return progressChan, resultChan, errChan
}

func (s *EditService) applyEdit(ctx context.Context, sessionID string, extraComments []model.Comment, emit func(stage, status, message string)) (*model.EditResult, error) {
	if emit == nil {
		emit = func(string, string, string) {}
	}

	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	comments, err := s.GetComments(sessionID)
	if err != nil {
		return nil, err
	}
	comments = append(comments, extraComments...)
	if len(comments) == 0 {
		return nil, fmt.Errorf("no comments to apply for session %s", sessionID)
	}

	logger.Infof("开始编辑: session=%s, comments=%d", sessionID, len(comments))

	// 阶段1：剥离内联图片，压缩token占用
	emit("sanitize", "in_progress", "正在优化幻灯片内容")
	strip := editor.StripImages(session.Slide.HTMLContent)
	if strip.ReplacedCount > 0 {
		logger.Debugf("剥离图片 %d 张", strip.ReplacedCount)
	}
	emit("sanitize", "completed", fmt.Sprintf("已剥离 %d 张内联图片", strip.ReplacedCount))

	// 阶段2：构造提示词
	emit("prompt", "in_progress", "正在生成编辑指令")
	promptSlide := session.Slide
	promptSlide.HTMLContent = strip.StrippedHTML
	promptText := editor.BuildEditPrompt(promptSlide, comments, session.Context)
	emit("prompt", "completed", "编辑指令就绪")

	// 阶段3：调用文本模型
	emit("model", "in_progress", "模型处理中")
	raw, err := s.client.Call(ctx, promptText)
	if err != nil {
		emit("model", "error", err.Error())
		return nil, err
	}
	emit("model", "completed", "模型返回完成")

	// 阶段4：解析与修复
	emit("parse", "in_progress", "正在解析模型输出")
	parsed, err := editor.ParseEditResponse(raw, session.Slide, comments)
	if err != nil {
		emit("parse", "error", err.Error())
		return nil, err
	}
	emit("parse", "completed", fmt.Sprintf("解析完成，%d 处修改", len(parsed.Changes)))

	// 阶段5：还原保留的图片
	emit("restore", "in_progress", "正在还原保留的图片")
	kept := editor.CountKeptImages(parsed.EditedSlide.HTMLContent, strip.ImageMap)
	restored := editor.RestoreImages(parsed.EditedSlide.HTMLContent, strip.ImageMap)
	emit("restore", "completed", fmt.Sprintf("保留图片 %d 张", kept))

	// 阶段6：生成新图片
	emit("images", "in_progress", "正在生成新图片")
	finalHTML, stats := s.resolver.Resolve(ctx, restored, session.ID, kept)
	emit("images", "completed", fmt.Sprintf("新生成 %d 张，失败 %d 张", stats.ImagesGenerated, len(stats.ProcessingErrors)))

	// 阶段7：合并结果
	emit("assemble", "in_progress", "正在合并编辑结果")
	result := editor.AssembleResult(parsed, finalHTML, stats)
	emit("assemble", "completed", "编辑完成")

	// 成功后更新会话并清空已消费的评论
	session.Slide = result.EditedSlide
	session.EditCount++
	session.UpdatedAt = time.Now()
	if err := s.storage.UpdateSession(session); err != nil {
		logger.Errorf("Failed to persist edited slide: %v", err)
	}
	if err := s.storage.ClearComments(sessionID); err != nil {
		logger.Errorf("Failed to clear comments: %v", err)
	}

	logger.Infof("编辑完成: session=%s, changes=%d, generated=%d, kept=%d",
		sessionID, result.Summary.TotalChanges, stats.ImagesGenerated, stats.ImagesKept)

	return result, nil
}

func (s *EditService) GetAsset(assetID string) (*model.ImageAsset, error) {
	asset, err := s.storage.GetAsset(assetID)
	if err != nil {
		if err == storage.ErrAssetNotFound {
			return nil, fmt.Errorf("asset not found: %s", assetID)
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}

	return asset, nil
}

// PromoteAssets 课程保存后把临时资产提升为永久
func (s *EditService) PromoteAssets(sessionID, lessonID string) (int, error) {
	count, err := s.storage.PromoteAssets(sessionID, lessonID)
	if err != nil {
		return 0, fmt.Errorf("failed to promote assets: %w", err)
	}

	logger.Infof("资产提升: session=%s, lesson=%s, count=%d", sessionID, lessonID, count)
	return count, nil
}

// cleanupLoop 周期清理过期会话与未提升的临时资产
func (s *EditService) cleanupLoop() {
	if s.sessionCfg == nil || s.sessionCfg.CleanupInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.sessionCfg.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-s.sessionCfg.TTL)

		sessions, err := s.storage.ListSessions()
		if err != nil {
			logger.Errorf("Failed to list sessions for cleanup: %v", err)
			continue
		}

		for _, session := range sessions {
			if session.UpdatedAt.Before(cutoff) {
				if err := s.storage.DeleteSession(session.ID); err != nil {
					logger.Errorf("Failed to delete expired session %s: %v", session.ID, err)
				} else {
					logger.Infof("Cleaned up expired session: %s", session.ID)
				}
			}
		}

		if count, err := s.storage.DeleteExpiredAssets(cutoff); err == nil && count > 0 {
			logger.Infof("Cleaned up %d expired assets", count)
		}
	}
}

// GetStorage 返回存储实例，供其他组件共享
func (s *EditService) GetStorage() storage.Storage {
	return s.storage
}

// storageAssetStore 把内部存储适配成图片处理阶段的资产接口
type storageAssetStore struct {
	storage storage.Storage
	baseURL string
}

func (a *storageAssetStore) SaveGenerated(_ context.Context, asset *model.ImageAsset) (string, error) {
	asset.ID = uuid.New().String()
	asset.CreatedAt = time.Now()

	if err := a.storage.SaveAsset(asset); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s", a.baseURL, asset.ID), nil
}
