package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"slidecraft-backend/internal/editor"
	"slidecraft-backend/internal/model"
	"slidecraft-backend/internal/service"
	"slidecraft-backend/internal/utils"
	"slidecraft-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type EditHandler struct {
	editService *service.EditService
}

func NewEditHandler(editService *service.EditService) *EditHandler {
	return &EditHandler{
		editService: editService,
	}
}

func (h *EditHandler) CreateSession(c *gin.Context) {
	var req model.CreateEditSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.editService.CreateSession(req.Slide, req.Context)
	if err != nil {
		logger.Errorf("Failed to create edit session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *EditHandler) GetSession(c *gin.Context) {
	session, err := h.editService.GetSession(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *EditHandler) DeleteSession(c *gin.Context) {
	if err := h.editService.DeleteSession(c.Param("session_id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *EditHandler) ListSessions(c *gin.Context) {
	sessions, err := h.editService.ListSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]model.EditSessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, sessionResponse(s))
	}

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

func (h *EditHandler) AddComment(c *gin.Context) {
	var req model.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	comment, err := h.editService.AddComment(req.SessionID, req)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, comment)
}

func (h *EditHandler) GetComments(c *gin.Context) {
	comments, err := h.editService.GetComments(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (h *EditHandler) ClearComments(c *gin.Context) {
	if err := h.editService.ClearComments(c.Param("session_id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// ApplyEdit 同步执行一轮编辑管线
func (h *EditHandler) ApplyEdit(c *gin.Context) {
	var req model.ApplyEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.editService.ApplyEdit(c.Request.Context(), req.SessionID, req.Comments)
	if err != nil {
		status, payload := editErrorResponse(err)
		c.JSON(status, payload)
		return
	}

	c.JSON(http.StatusOK, model.ApplyEditResponse{
		SessionID: req.SessionID,
		Result:    result,
	})
}

// ApplyEditStream SSE推送编辑进度与最终结果
func (h *EditHandler) ApplyEditStream(c *gin.Context) {
	var req model.ApplyEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sseWriter := utils.NewSSEWriter(c.Writer)

	progressChan, resultChan, errChan := h.editService.ApplyEditWithProgress(c.Request.Context(), req.SessionID, req.Comments)

	for {
		select {
		case event, ok := <-progressChan:
			if !ok {
				progressChan = nil
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Errorf("Failed to marshal progress event: %v", err)
				continue
			}
			if err := sseWriter.Write("progress", string(data)); err != nil {
				logger.Errorf("Failed to write SSE: %v", err)
				return
			}

		case result, ok := <-resultChan:
			if !ok {
				continue
			}
			data, _ := json.Marshal(model.ApplyEditResponse{SessionID: req.SessionID, Result: result})
			sseWriter.Write("result", string(data))
			sseWriter.Close()
			return

		case err, ok := <-errChan:
			if !ok {
				continue
			}
			_, payload := editErrorResponse(err)
			data, _ := json.Marshal(payload)
			sseWriter.Write("error", string(data))
			sseWriter.Close()
			return
		}
	}
}

// GetAsset 返回临时存储中的图片字节
func (h *EditHandler) GetAsset(c *gin.Context) {
	asset, err := h.editService.GetAsset(c.Param("asset_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(asset.Data)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "asset data corrupted"})
		return
	}

	mimeType := asset.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	c.Data(http.StatusOK, mimeType, raw)
}

func (h *EditHandler) PromoteAssets(c *gin.Context) {
	var req model.PromoteAssetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := h.editService.PromoteAssets(req.SessionID, req.LessonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"promoted": count})
}

func sessionResponse(s *model.EditSession) model.EditSessionResponse {
	return model.EditSessionResponse{
		SessionID:    s.ID,
		Slide:        s.Slide,
		CommentCount: len(s.PendingComments),
		EditCount:    s.EditCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// editErrorResponse 把管线错误分类映射为HTTP响应。
// 三类管线级错误都给出可执行的提示，单图失败不会走到这里
func editErrorResponse(err error) (int, gin.H) {
	var providerErr *editor.ProviderError
	var formatErr *editor.FormatError
	var truncErr *editor.TruncationError

	switch {
	case errors.As(err, &providerErr):
		return http.StatusBadGateway, gin.H{
			"error":      err.Error(),
			"type":       "provider_error",
			"suggestion": "AI服务暂时不可用，请稍后重试",
		}
	case errors.As(err, &formatErr):
		return http.StatusBadGateway, gin.H{
			"error":      err.Error(),
			"type":       "format_error",
			"suggestion": "模型输出格式异常，请重试",
		}
	case errors.As(err, &truncErr):
		return http.StatusBadGateway, gin.H{
			"error":      err.Error(),
			"type":       "truncation_error",
			"suggestion": "模型输出被截断，请重试或减少幻灯片内容",
		}
	default:
		return http.StatusInternalServerError, gin.H{
			"error": err.Error(),
			"type":  "service_error",
		}
	}
}
