// Package memory хранилище сервера в памяти для разработки без PostgreSQL
package memory

import (
	"context"
	"sync"
	"time"

	"worksync/internal/domain/entity"
	"worksync/internal/domain/remote"
)

type Storage struct {
	mu       sync.RWMutex
	nextID   int64
	entities map[int64]*remote.Entity
	uploads  map[string]*remote.Upload
	now      func() time.Time
}

func New() *Storage {
	return &Storage{
		entities: make(map[int64]*remote.Entity),
		uploads:  make(map[string]*remote.Upload),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Storage) Create(_ context.Context, e *remote.Entity) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()

	stored := *e
	stored.ID = s.nextID
	stored.Data = copyFields(e.Data)
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.entities[stored.ID] = &stored

	e.ID, e.CreatedAt, e.UpdatedAt = stored.ID, now, now
	return stored.ID, nil
}

func (s *Storage) Get(_ context.Context, t entity.Type, id int64) (*remote.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.live(t, id)
	if !ok {
		return nil, remote.ErrNotFound
	}

	out := *e
	out.Data = copyFields(e.Data)
	return &out, nil
}

func (s *Storage) Update(_ context.Context, t entity.Type, id int64, patch entity.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(t, id)
	if !ok {
		return remote.ErrNotFound
	}

	for k, v := range patch {
		e.Data[k] = v
	}
	e.UpdatedAt = s.now()
	return nil
}

func (s *Storage) Delete(_ context.Context, t entity.Type, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entities[id]
	if !ok || e.Type != t {
		return remote.ErrNotFound
	}
	if e.DeletedAt == nil {
		now := s.now()
		e.DeletedAt = &now
	}
	return nil
}

func (s *Storage) Exists(_ context.Context, t entity.Type, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.live(t, id)
	return ok, nil
}

func (s *Storage) live(t entity.Type, id int64) (*remote.Entity, bool) {
	e, ok := s.entities[id]
	if !ok || e.Type != t || e.DeletedAt != nil {
		return nil, false
	}
	return e, true
}

func (s *Storage) CreateUpload(_ context.Context, u *remote.Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *u
	s.uploads[u.Token] = &stored
	return nil
}

func (s *Storage) ConsumeUpload(_ context.Context, token string, now time.Time) (*remote.Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.uploads[token]
	switch {
	case !ok:
		return nil, remote.ErrUploadNotFound
	case u.UsedAt != nil:
		return nil, remote.ErrUploadUsed
	case !u.ExpiresAt.After(now):
		return nil, remote.ErrUploadExpired
	}

	used := now
	u.UsedAt = &used
	out := *u
	return &out, nil
}

func (s *Storage) SetUploadSize(_ context.Context, token string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.uploads[token]; ok {
		u.Size = size
	}
	return nil
}

func (s *Storage) FindUploadByKey(_ context.Context, blobKey string) (*remote.Upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.uploads {
		if u.BlobKey == blobKey {
			out := *u
			return &out, nil
		}
	}
	return nil, remote.ErrUploadNotFound
}

func copyFields(f entity.Fields) entity.Fields {
	out := make(entity.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
