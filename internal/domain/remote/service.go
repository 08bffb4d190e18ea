package remote

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/exp/slog"

	"worksync/internal/domain/entity"
)

const (
	DefaultUploadTTL = 15 * time.Minute
	defaultMimeType  = "application/octet-stream"
	uploadPath       = "/api/v1/uploads/"
	filesPath        = "/files/"
)

type Servicer interface {
	Create(ctx context.Context, t entity.Type, fields entity.Fields) (int64, error)
	Find(ctx context.Context, t entity.Type, id int64) (*Entity, error)
	Update(ctx context.Context, t entity.Type, id int64, patch entity.Fields) error
	Delete(ctx context.Context, t entity.Type, id int64) error

	RequestUpload(ctx context.Context, fileName, mimeType string) (*Ticket, error)
	StoreUpload(ctx context.Context, token, digest string, body io.Reader) (*Upload, error)
	OpenFile(ctx context.Context, key string) (*Upload, io.ReadSeekCloser, error)
}

type Options struct {
	// PublicBaseURL внешний адрес сервера для ссылок на файлы
	PublicBaseURL string
	UploadTTL     time.Duration
}

// Service серверная сторона удаленной системы: сущности и прямые загрузки
type Service struct {
	repo    Repository
	uploads UploadRepository
	blobs   BlobStore
	opts    Options
	now     func() time.Time
	log     *slog.Logger
}

func NewService(repo Repository, uploads UploadRepository, blobs BlobStore, opts Options, log *slog.Logger) *Service {
	if opts.UploadTTL <= 0 {
		opts.UploadTTL = DefaultUploadTTL
	}
	opts.PublicBaseURL = strings.TrimRight(opts.PublicBaseURL, "/")

	return &Service{
		repo:    repo,
		uploads: uploads,
		blobs:   blobs,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With("component", "remote_service"),
	}
}

func (s *Service) Create(ctx context.Context, t entity.Type, fields entity.Fields) (int64, error) {
	data, kind, parentID, err := splitParent(t, fields)
	if err != nil {
		return 0, err
	}

	if kind != "" {
		ok, err := s.repo.Exists(ctx, kind.Type(), parentID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("%w: %s %d", ErrParentNotFound, kind, parentID)
		}
	}

	id, err := s.repo.Create(ctx, &Entity{
		Type:       t,
		ParentKind: kind,
		ParentID:   parentID,
		Data:       data,
	})
	if err != nil {
		return 0, err
	}

	s.log.Debug("entity created", "type", t, "id", id, "parent_kind", kind, "parent_id", parentID)
	return id, nil
}

func (s *Service) Find(ctx context.Context, t entity.Type, id int64) (*Entity, error) {
	return s.repo.Get(ctx, t, id)
}

// Update сливает поля; смена родителя не поддерживается, внешние ключи игнорируются
func (s *Service) Update(ctx context.Context, t entity.Type, id int64, patch entity.Fields) error {
	data := stripKeys(patch)
	if len(data) == 0 {
		if _, err := s.repo.Get(ctx, t, id); err != nil {
			return err
		}
		return nil
	}
	return s.repo.Update(ctx, t, id, data)
}

func (s *Service) Delete(ctx context.Context, t entity.Type, id int64) error {
	return s.repo.Delete(ctx, t, id)
}

func (s *Service) RequestUpload(ctx context.Context, fileName, mimeType string) (*Ticket, error) {
	name := filepath.Base(fileName)
	if fileName == "" || name != fileName || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFileName, fileName)
	}
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	now := s.now()
	u := &Upload{
		Token:     uuid.NewString(),
		BlobKey:   uuid.NewString() + strings.ToLower(filepath.Ext(name)),
		FileName:  name,
		MimeType:  mimeType,
		ExpiresAt: now.Add(s.opts.UploadTTL),
		CreatedAt: now,
	}
	if err := s.uploads.CreateUpload(ctx, u); err != nil {
		return nil, err
	}

	return &Ticket{
		UploadURL: uploadPath + u.Token,
		PublicURL: s.opts.PublicBaseURL + filesPath + u.BlobKey,
		ExpiresAt: u.ExpiresAt,
	}, nil
}

// StoreUpload принимает содержимое по токену. Токен расходуется до записи: повтор требует нового разрешения
func (s *Service) StoreUpload(ctx context.Context, token, digest string, body io.Reader) (*Upload, error) {
	u, err := s.uploads.ConsumeUpload(ctx, token, s.now())
	if err != nil {
		return nil, err
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}

	size, err := s.blobs.Put(ctx, u.BlobKey, io.TeeReader(body, h))
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	if digest != "" && !strings.EqualFold(digest, hex.EncodeToString(h.Sum(nil))) {
		if derr := s.blobs.Delete(ctx, u.BlobKey); derr != nil {
			s.log.Error("failed to delete rejected blob", "key", u.BlobKey, "error", derr)
		}
		return nil, ErrDigestMismatch
	}

	if err := s.uploads.SetUploadSize(ctx, token, size); err != nil {
		return nil, err
	}
	u.Size = size

	s.log.Info("upload stored", "key", u.BlobKey, "file_name", u.FileName, "size", size)
	return u, nil
}

func (s *Service) OpenFile(ctx context.Context, key string) (*Upload, io.ReadSeekCloser, error) {
	u, err := s.uploads.FindUploadByKey(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if u.UsedAt == nil {
		return nil, nil, ErrUploadNotFound
	}

	r, err := s.blobs.Open(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	return u, r, nil
}

// splitParent отделяет внешний ключ родителя от данных. У дочернего типа должен быть ровно один родитель
func splitParent(t entity.Type, fields entity.Fields) (entity.Fields, entity.ParentKind, int64, error) {
	data := stripKeys(fields)

	kinds := t.ParentKinds()
	if len(kinds) == 0 {
		return data, "", 0, nil
	}

	var (
		kind  entity.ParentKind
		id    int64
		found int
	)
	for _, k := range kinds {
		v, ok := fields[k.ForeignKey()]
		if !ok || v == nil {
			continue
		}
		parsed, err := toID(v)
		if err != nil {
			return nil, "", 0, fmt.Errorf("%w: %s: %v", ErrInvalidParent, k.ForeignKey(), err)
		}
		kind, id = k, parsed
		found++
	}

	if found != 1 {
		return nil, "", 0, fmt.Errorf("%w: %s requires exactly one parent, got %d", ErrInvalidParent, t, found)
	}

	return data, kind, id, nil
}

// stripKeys копия без id и всех внешних ключей
func stripKeys(fields entity.Fields) entity.Fields {
	out := make(entity.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	delete(out, "id")
	for _, k := range []entity.ParentKind{entity.ParentWork, entity.ParentProgressLog, entity.ParentComment} {
		delete(out, k.ForeignKey())
	}
	return out
}

func toID(v any) (int64, error) {
	var id int64
	switch n := v.(type) {
	case float64:
		if n != float64(int64(n)) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		id = int64(n)
	case int64:
		id = n
	case int:
		id = int64(n)
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, err
		}
		id = parsed
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, err
		}
		id = parsed
	default:
		return 0, fmt.Errorf("unsupported id type %T", v)
	}

	if id <= 0 {
		return 0, errors.New("id must be positive")
	}
	return id, nil
}
