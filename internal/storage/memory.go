package storage

import (
	"sync"
	"time"

	"slidecraft-backend/internal/model"
)

type MemoryStorage struct {
	sessions map[string]*model.EditSession
	assets   map[string]*model.ImageAsset
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*model.EditSession),
		assets:   make(map[string]*model.ImageAsset),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) CreateSession(session *model.EditSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStorage) GetSession(sessionID string) (*model.EditSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

func (m *MemoryStorage) UpdateSession(session *model.EditSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; !exists {
		return ErrSessionNotFound
	}

	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStorage) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return ErrSessionNotFound
	}

	delete(m.sessions, sessionID)

	// 会话删除时顺带清掉其未提升的临时资产
	for id, asset := range m.assets {
		if asset.SessionID == sessionID && !asset.Permanent {
			delete(m.assets, id)
		}
	}

	return nil
}

func (m *MemoryStorage) ListSessions() ([]*model.EditSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*model.EditSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}

	return sessions, nil
}

func (m *MemoryStorage) AddComment(sessionID string, comment *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}

	session.PendingComments = append(session.PendingComments, *comment)
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStorage) GetComments(sessionID string) ([]model.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	comments := make([]model.Comment, len(session.PendingComments))
	copy(comments, session.PendingComments)
	return comments, nil
}

func (m *MemoryStorage) ClearComments(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}

	session.PendingComments = nil
	session.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStorage) SaveAsset(asset *model.ImageAsset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.assets[asset.ID] = asset
	return nil
}

func (m *MemoryStorage) GetAsset(assetID string) (*model.ImageAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	asset, exists := m.assets[assetID]
	if !exists {
		return nil, ErrAssetNotFound
	}

	return asset, nil
}

func (m *MemoryStorage) ListSessionAssets(sessionID string) ([]*model.ImageAsset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var assets []*model.ImageAsset
	for _, asset := range m.assets {
		if asset.SessionID == sessionID {
			assets = append(assets, asset)
		}
	}

	return assets, nil
}

func (m *MemoryStorage) PromoteAssets(sessionID, lessonID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, asset := range m.assets {
		if asset.SessionID == sessionID && !asset.Permanent {
			asset.Permanent = true
			asset.LessonID = lessonID
			count++
		}
	}

	return count, nil
}

func (m *MemoryStorage) DeleteExpiredAssets(cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for id, asset := range m.assets {
		if !asset.Permanent && asset.CreatedAt.Before(cutoff) {
			delete(m.assets, id)
			count++
		}
	}

	return count, nil
}
