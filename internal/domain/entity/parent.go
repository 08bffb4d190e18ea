package entity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// TempPrefix префикс временных идентификаторов, выданных клиентом
const TempPrefix = "temp_"

// NewTempID генерирует новый временный идентификатор
func NewTempID() string {
	return TempPrefix + uuid.NewString()
}

// IsTempID проверяет, является ли строка временным идентификатором
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// Ref ссылка на сущность: либо временный, либо постоянный идентификатор
type Ref struct {
	TempID   string `json:"temp_id,omitempty"`
	RemoteID int64  `json:"remote_id,omitempty"`
}

// TempRef ссылка по временному идентификатору
func TempRef(tempID string) Ref {
	return Ref{TempID: tempID}
}

// RemoteRef ссылка по постоянному идентификатору
func RemoteRef(remoteID int64) Ref {
	return Ref{RemoteID: remoteID}
}

// ParseRef разбирает ссылку: "temp_..." или число
func ParseRef(s string) (Ref, error) {
	if IsTempID(s) {
		return TempRef(s), nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return Ref{}, fmt.Errorf("%w: %q", ErrInvalidRef, s)
	}
	return RemoteRef(id), nil
}

// Resolved ссылка уже указывает на постоянный идентификатор
func (r Ref) Resolved() bool {
	return r.RemoteID != 0
}

// IsZero пустая ссылка
func (r Ref) IsZero() bool {
	return r.TempID == "" && r.RemoteID == 0
}

// Validate ровно одна из форм должна быть заполнена
func (r Ref) Validate() error {
	if (r.TempID == "") == (r.RemoteID == 0) {
		return fmt.Errorf("%w: must hold either temp id or remote id", ErrInvalidRef)
	}
	if r.TempID != "" && !IsTempID(r.TempID) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, r.TempID)
	}
	return nil
}

func (r Ref) String() string {
	if r.Resolved() {
		return strconv.FormatInt(r.RemoteID, 10)
	}
	return r.TempID
}

// ParentKind вид родительской сущности
type ParentKind string

const (
	ParentWork        ParentKind = "work"
	ParentProgressLog ParentKind = "progress_log"
	ParentComment     ParentKind = "comment"
)

// Type тип сущности, соответствующий виду родителя
func (k ParentKind) Type() Type {
	return Type(k)
}

// ForeignKey имя поля внешнего ключа в удаленном payload
func (k ParentKind) ForeignKey() string {
	return string(k) + "_id"
}

// ParentRef ссылка на владельца: в каждый момент представим ровно один вид родителя
type ParentRef struct {
	Kind ParentKind `json:"kind"`
	Ref  Ref        `json:"ref"`
}

// WorkParent родитель - работа
func WorkParent(ref Ref) *ParentRef {
	return &ParentRef{Kind: ParentWork, Ref: ref}
}

// ProgressLogParent родитель - запись о ходе работ
func ProgressLogParent(ref Ref) *ParentRef {
	return &ParentRef{Kind: ParentProgressLog, Ref: ref}
}

// CommentParent родитель - комментарий
func CommentParent(ref Ref) *ParentRef {
	return &ParentRef{Kind: ParentComment, Ref: ref}
}

// ValidateParent проверяет, что родитель допустим для типа
func ValidateParent(t Type, p *ParentRef) error {
	kinds := t.ParentKinds()
	if len(kinds) == 0 {
		if p != nil {
			return fmt.Errorf("%w: %s has no parent", ErrInvalidParent, t)
		}
		return nil
	}
	if p == nil {
		return fmt.Errorf("%w: %s requires a parent", ErrInvalidParent, t)
	}
	if err := p.Ref.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParent, err)
	}
	for _, k := range kinds {
		if k == p.Kind {
			return nil
		}
	}
	return fmt.Errorf("%w: %s cannot belong to %s", ErrInvalidParent, t, p.Kind)
}

func (p *ParentRef) String() string {
	if p == nil {
		return ""
	}
	return string(p.Kind) + ":" + p.Ref.String()
}
