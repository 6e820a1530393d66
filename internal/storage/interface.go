package storage

import (
	"time"

	"slidecraft-backend/internal/model"
)

type Storage interface {
	// 编辑会话管理
	CreateSession(session *model.EditSession) error
	GetSession(sessionID string) (*model.EditSession, error)
	UpdateSession(session *model.EditSession) error
	DeleteSession(sessionID string) error
	ListSessions() ([]*model.EditSession, error)

	// 评论管理（待提交集合）
	AddComment(sessionID string, comment *model.Comment) error
	GetComments(sessionID string) ([]model.Comment, error)
	ClearComments(sessionID string) error

	// 图片资产管理（临时存储，可提升为永久）
	SaveAsset(asset *model.ImageAsset) error
	GetAsset(assetID string) (*model.ImageAsset, error)
	ListSessionAssets(sessionID string) ([]*model.ImageAsset, error)
	PromoteAssets(sessionID, lessonID string) (int, error)
	DeleteExpiredAssets(cutoff time.Time) (int, error)

	// 存储管理
	Init() error
	Close() error
	Backup() error
}
