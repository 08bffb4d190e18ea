package entity

import (
	"encoding/json"
	"time"
)

// Fields доменные поля сущности; схема принадлежит удаленной системе
type Fields map[string]any

// Entity локальная запись сущности (работа, запись о ходе работ, комментарий, вложение)
type Entity struct {
	LocalKey        int64      `json:"local_key"`
	Type            Type       `json:"type"`
	TempID          string     `json:"temp_id,omitempty"`
	RemoteID        int64      `json:"remote_id,omitempty"`
	Parent          *ParentRef `json:"parent,omitempty"`
	Fields          Fields     `json:"fields"`
	SyncStatus      SyncStatus `json:"sync_status"`
	LastSyncAttempt *time.Time `json:"last_sync_attempt,omitempty"`
	SyncError       string     `json:"sync_error,omitempty"`
	Deleted         bool       `json:"deleted"`
	Upload          *Upload    `json:"upload,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Upload состояние бинарного содержимого вложения
type Upload struct {
	FileName string       `json:"file_name"`
	MimeType string       `json:"mime_type"`
	Size     int64        `json:"size"`
	Payload  []byte       `json:"-"`
	Progress int          `json:"progress"`
	Status   UploadStatus `json:"status"`
	FileURL  string       `json:"file_url,omitempty"`
}

// Resolved сущности назначен постоянный идентификатор
func (e *Entity) Resolved() bool {
	return e.RemoteID != 0
}

// Ref ссылка на сущность для использования в дочерних записях
func (e *Entity) Ref() Ref {
	if e.Resolved() {
		return RemoteRef(e.RemoteID)
	}
	return TempRef(e.TempID)
}

// ID идентификатор для очереди мутаций: remoteId если есть, иначе tempId
func (e *Entity) ID() string {
	return e.Ref().String()
}

// Snapshot копия полей для payload элемента очереди
func (e *Entity) Snapshot() (json.RawMessage, error) {
	fields := e.Fields
	if fields == nil {
		fields = Fields{}
	}
	return json.Marshal(fields)
}

// Filter фильтр для выборки локальных записей
type Filter struct {
	Type        Type
	SyncStatus  SyncStatus
	Parent      *ParentRef
	ShowDeleted bool
	Limit       int
}
