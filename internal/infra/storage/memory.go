package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"sync"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
)

// ErrNotFound is returned by MemoryStorage.Get for unknown keys.
var ErrNotFound = errors.New("object not found")

// MemoryStorage keeps staged audio in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string]blob
}

type blob struct {
	data     []byte
	mimeType string
}

// NewMemoryStorage constructs an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string]blob)}
}

// Put copies data under key.
func (s *MemoryStorage) Put(_ context.Context, key string, data []byte, mimeType string) (callnotes.StoredObject, error) {
	sum := md5.Sum(data)
	s.mu.Lock()
	s.blobs[key] = blob{data: bytes.Clone(data), mimeType: mimeType}
	s.mu.Unlock()
	return callnotes.StoredObject{
		Key:      key,
		Size:     int64(len(data)),
		MimeType: mimeType,
		ETag:     hex.EncodeToString(sum[:]),
	}, nil
}

// Get returns a reader over the stored bytes.
func (s *MemoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// Delete removes key. Unknown keys are ignored.
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

// Len reports how many objects are staged.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

var _ callnotes.ObjectStorage = (*MemoryStorage)(nil)
