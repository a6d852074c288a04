package storage

import "errors"

var (
	ErrStorageInit = errors.New("storage initialization failed")
	ErrPersistence = errors.New("snapshot persistence failed")
	ErrStoreClosed = errors.New("store is closed")
)
