package entity

import "fmt"

// Type тип сущности
type Type string

const (
	TypeWork        Type = "work"
	TypeProgressLog Type = "progress_log"
	TypeComment     Type = "comment"
	TypeAttachment  Type = "attachment"
)

// Types все поддерживаемые типы в порядке зависимостей (родители раньше детей)
var Types = []Type{TypeWork, TypeProgressLog, TypeComment, TypeAttachment}

// ParseType разбирает тип сущности из строки
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeWork, TypeProgressLog, TypeComment, TypeAttachment:
		return Type(s), nil
	case "works":
		return TypeWork, nil
	case "progress", "progress_logs":
		return TypeProgressLog, nil
	case "comments":
		return TypeComment, nil
	case "attachments":
		return TypeAttachment, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t Type) String() string {
	return string(t)
}

// Table имя локальной таблицы для типа
func (t Type) Table() string {
	switch t {
	case TypeWork:
		return "works"
	case TypeProgressLog:
		return "progress_logs"
	case TypeComment:
		return "comments"
	case TypeAttachment:
		return "attachments"
	}
	return ""
}

// ParentKinds допустимые виды родителя для типа
func (t Type) ParentKinds() []ParentKind {
	switch t {
	case TypeProgressLog:
		return []ParentKind{ParentWork}
	case TypeComment:
		return []ParentKind{ParentWork, ParentProgressLog}
	case TypeAttachment:
		return []ParentKind{ParentWork, ParentProgressLog, ParentComment}
	}
	return nil
}

// Dependents типы, которые могут ссылаться на сущность этого типа как на родителя
func (t Type) Dependents() []Type {
	var deps []Type
	for _, child := range Types {
		for _, kind := range child.ParentKinds() {
			if kind.Type() == t {
				deps = append(deps, child)
			}
		}
	}
	return deps
}

// SyncStatus статус синхронизации записи
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// UploadStatus статус загрузки вложения
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadUploaded  UploadStatus = "uploaded"
	UploadError     UploadStatus = "error"
)
