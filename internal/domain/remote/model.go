package remote

import (
	"time"

	"worksync/internal/domain/entity"
)

// DigestHeader заголовок PUT с шестнадцатеричным BLAKE2b-256 содержимого
const DigestHeader = "X-Content-Blake2b"

// Entity серверная запись. Внешний ключ родителя хранится отдельно от данных
type Entity struct {
	ID         int64             `json:"id"`
	Type       entity.Type       `json:"type"`
	ParentKind entity.ParentKind `json:"parent_kind,omitempty"`
	ParentID   int64             `json:"parent_id,omitempty"`
	Data       entity.Fields     `json:"data"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	DeletedAt  *time.Time        `json:"deleted_at,omitempty"`
}

// Fields данные вместе с внешним ключом родителя, как их присылает клиент
func (e *Entity) Fields() entity.Fields {
	out := make(entity.Fields, len(e.Data)+2)
	for k, v := range e.Data {
		out[k] = v
	}
	out["id"] = e.ID
	if e.ParentKind != "" {
		out[e.ParentKind.ForeignKey()] = e.ParentID
	}
	return out
}

// Upload разрешение на прямую загрузку: одноразовое и ограниченное по времени
type Upload struct {
	Token     string     `json:"token"`
	BlobKey   string     `json:"blob_key"`
	FileName  string     `json:"file_name"`
	MimeType  string     `json:"mime_type"`
	Size      int64      `json:"size"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Ticket ответ на запрос загрузки
type Ticket struct {
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
