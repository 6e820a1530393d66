package storage

import "errors"

var (
	ErrSessionNotFound = errors.New("edit session not found")
	ErrAssetNotFound   = errors.New("image asset not found")
	ErrInvalidData     = errors.New("invalid data")
	ErrStorageInit     = errors.New("storage initialization failed")
	ErrFileOperation   = errors.New("file operation failed")
)
