package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"slidecraft-backend/internal/model"
	"slidecraft-backend/pkg/logger"
)

type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.EditSession
	cacheSize int
}

type SessionIndex struct {
	ID        string    `json:"id"`
	SlideID   string    `json:"slide_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AssetIndex struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	LessonID  string    `json:"lesson_id,omitempty"`
	Permanent bool      `json:"permanent"`
	CreatedAt time.Time `json:"created_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.EditSession),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadSessions(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Info("Disk storage initialized successfully")
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "sessions"),
		filepath.Join(d.dataDir, "assets"),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) loadSessions() error {
	indexPath := filepath.Join(d.dataDir, "sessions.json")

	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return d.saveSessionIndex([]*SessionIndex{})
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return err
	}

	var indexes []*SessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return err
	}

	for _, index := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}

		session, err := d.loadSessionFromFile(index.ID)
		if err != nil {
			logger.Errorf("Failed to load session %s: %v", index.ID, err)
			continue
		}

		d.cache[index.ID] = session
	}

	return nil
}

func (d *DiskStorage) loadSessionFromFile(sessionID string) (*model.EditSession, error) {
	sessionPath := filepath.Join(d.dataDir, "sessions", sessionID+".json")

	data, err := os.ReadFile(sessionPath)
	if err != nil {
		return nil, err
	}

	var session model.EditSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}

	return &session, nil
}

func (d *DiskStorage) saveSessionIndex(indexes []*SessionIndex) error {
	indexPath := filepath.Join(d.dataDir, "sessions.json")
	tempPath := indexPath + ".tmp"

	data, err := json.MarshalIndent(indexes, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, indexPath)
}

func (d *DiskStorage) saveSessionToFile(session *model.EditSession) error {
	sessionPath := filepath.Join(d.dataDir, "sessions", session.ID+".json")
	tempPath := sessionPath + ".tmp"

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, sessionPath)
}

func (d *DiskStorage) updateSessionIndex() error {
	sessionsDir := filepath.Join(d.dataDir, "sessions")

	files, err := os.ReadDir(sessionsDir)
	if err != nil {
		return err
	}

	var indexes []*SessionIndex
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		sessionID := file.Name()[:len(file.Name())-5]
		session, err := d.loadSessionFromFile(sessionID)
		if err != nil {
			logger.Errorf("Failed to load session %s for index update: %v", sessionID, err)
			continue
		}

		indexes = append(indexes, &SessionIndex{
			ID:        session.ID,
			SlideID:   session.Slide.ID,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}

	return d.saveSessionIndex(indexes)
}

func (d *DiskStorage) CreateSession(session *model.EditSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.saveSessionToFile(session); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := d.updateSessionIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[session.ID] = session
	d.evictCache()

	return nil
}

func (d *DiskStorage) GetSession(sessionID string) (*model.EditSession, error) {
	d.mu.RLock()
	if session, exists := d.cache[sessionID]; exists {
		d.mu.RUnlock()
		return session, nil
	}
	d.mu.RUnlock()

	session, err := d.loadSessionFromFile(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.mu.Lock()
	d.cache[sessionID] = session
	d.evictCache()
	d.mu.Unlock()

	return session, nil
}

func (d *DiskStorage) UpdateSession(session *model.EditSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.loadSessionFromFile(session.ID); err != nil {
		if os.IsNotExist(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := d.saveSessionToFile(session); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := d.updateSessionIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[session.ID] = session

	return nil
}

func (d *DiskStorage) DeleteSession(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sessionPath := filepath.Join(d.dataDir, "sessions", sessionID+".json")

	if _, err := os.Stat(sessionPath); os.IsNotExist(err) {
		return ErrSessionNotFound
	}

	if err := os.Remove(sessionPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.cache, sessionID)

	// 未提升的临时资产随会话一起删除
	assets, err := d.listAssetIndexes()
	if err == nil {
		for _, idx := range assets {
			if idx.SessionID == sessionID && !idx.Permanent {
				os.Remove(filepath.Join(d.dataDir, "assets", idx.ID+".json"))
			}
		}
	}

	return d.updateSessionIndex()
}

func (d *DiskStorage) ListSessions() ([]*model.EditSession, error) {
	indexPath := filepath.Join(d.dataDir, "sessions.json")

	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	var indexes []*SessionIndex
	if err := json.Unmarshal(data, &indexes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	sessions := make([]*model.EditSession, 0, len(indexes))
	for _, index := range indexes {
		sessions = append(sessions, &model.EditSession{
			ID:        index.ID,
			Slide:     model.Slide{ID: index.SlideID},
			CreatedAt: index.CreatedAt,
			UpdatedAt: index.UpdatedAt,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	return sessions, nil
}

func (d *DiskStorage) AddComment(sessionID string, comment *model.Comment) error {
	session, err := d.GetSession(sessionID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	session.PendingComments = append(session.PendingComments, *comment)
	session.UpdatedAt = time.Now()
	d.mu.Unlock()

	return d.UpdateSession(session)
}

func (d *DiskStorage) GetComments(sessionID string) ([]model.Comment, error) {
	session, err := d.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	comments := make([]model.Comment, len(session.PendingComments))
	copy(comments, session.PendingComments)
	return comments, nil
}

func (d *DiskStorage) ClearComments(sessionID string) error {
	session, err := d.GetSession(sessionID)
	if err != nil {
		return err
	}

	d.mu.Lock()
	session.PendingComments = nil
	session.UpdatedAt = time.Now()
	d.mu.Unlock()

	return d.UpdateSession(session)
}

func (d *DiskStorage) assetPath(assetID string) string {
	return filepath.Join(d.dataDir, "assets", assetID+".json")
}

func (d *DiskStorage) SaveAsset(asset *model.ImageAsset) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tempPath := d.assetPath(asset.ID) + ".tmp"

	data, err := json.MarshalIndent(asset, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := os.Rename(tempPath, d.assetPath(asset.ID)); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	return nil
}

func (d *DiskStorage) GetAsset(assetID string) (*model.ImageAsset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(d.assetPath(assetID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	var asset model.ImageAsset
	if err := json.Unmarshal(data, &asset); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	return &asset, nil
}

func (d *DiskStorage) listAssetIndexes() ([]*AssetIndex, error) {
	assetsDir := filepath.Join(d.dataDir, "assets")

	files, err := os.ReadDir(assetsDir)
	if err != nil {
		return nil, err
	}

	var indexes []*AssetIndex
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(assetsDir, file.Name()))
		if err != nil {
			continue
		}

		var asset model.ImageAsset
		if err := json.Unmarshal(data, &asset); err != nil {
			continue
		}

		indexes = append(indexes, &AssetIndex{
			ID:        asset.ID,
			SessionID: asset.SessionID,
			LessonID:  asset.LessonID,
			Permanent: asset.Permanent,
			CreatedAt: asset.CreatedAt,
		})
	}

	return indexes, nil
}

func (d *DiskStorage) ListSessionAssets(sessionID string) ([]*model.ImageAsset, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexes, err := d.listAssetIndexes()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	var assets []*model.ImageAsset
	for _, idx := range indexes {
		if idx.SessionID != sessionID {
			continue
		}

		data, err := os.ReadFile(d.assetPath(idx.ID))
		if err != nil {
			continue
		}

		var asset model.ImageAsset
		if err := json.Unmarshal(data, &asset); err != nil {
			continue
		}
		assets = append(assets, &asset)
	}

	return assets, nil
}

func (d *DiskStorage) PromoteAssets(sessionID, lessonID string) (int, error) {
	assets, err := d.ListSessionAssets(sessionID)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, asset := range assets {
		if asset.Permanent {
			continue
		}
		asset.Permanent = true
		asset.LessonID = lessonID
		if err := d.SaveAsset(asset); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

func (d *DiskStorage) DeleteExpiredAssets(cutoff time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	indexes, err := d.listAssetIndexes()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	count := 0
	for _, idx := range indexes {
		if idx.Permanent || !idx.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(d.assetPath(idx.ID)); err == nil {
			count++
		}
	}

	return count, nil
}

func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	var entries []cacheEntry
	for id, session := range d.cache {
		entries = append(entries, cacheEntry{
			id:        id,
			updatedAt: session.UpdatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.EditSession)
	return nil
}

func (d *DiskStorage) Backup() error {
	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().Unix()))

	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	sourceDirs := []string{"sessions", "assets"}
	for _, dir := range sourceDirs {
		srcDir := filepath.Join(d.dataDir, dir)
		dstDir := filepath.Join(backupDir, dir)

		if err := os.MkdirAll(dstDir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}

		if err := d.copyDir(srcDir, dstDir); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	indexSrc := filepath.Join(d.dataDir, "sessions.json")
	indexDst := filepath.Join(backupDir, "sessions.json")
	if err := d.copyFile(indexSrc, indexDst); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func (d *DiskStorage) copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := d.copyFile(filepath.Join(src, file.Name()), filepath.Join(dst, file.Name())); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0644)
}
