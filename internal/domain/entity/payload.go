package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// localOnlyFields служебные поля, которые никогда не отправляются на сервер
var localOnlyFields = map[string]struct{}{
	"local_key":         {},
	"temp_id":           {},
	"remote_id":         {},
	"id":                {},
	"sync_status":       {},
	"sync_error":        {},
	"last_sync_attempt": {},
	"payload":           {},
	"parent":            {},
	"deleted":           {},
}

// DecodeFields разбирает payload элемента очереди
func DecodeFields(raw json.RawMessage) (Fields, error) {
	fields := Fields{}
	if len(raw) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return fields, nil
}

// RemotePayload убирает локальные поля и проставляет внешний ключ родителя
func RemotePayload(fields Fields, parent *ParentRef) (Fields, error) {
	out := make(Fields, len(fields)+1)
	for k, v := range fields {
		if _, skip := localOnlyFields[k]; skip || strings.HasPrefix(k, "upload_") {
			continue
		}
		out[k] = v
	}

	if parent != nil {
		if !parent.Ref.Resolved() {
			return nil, fmt.Errorf("%w: parent %s is not resolved", ErrInvalidParent, parent)
		}
		// Все виды внешних ключей взаимоисключающие
		for _, kind := range []ParentKind{ParentWork, ParentProgressLog, ParentComment} {
			delete(out, kind.ForeignKey())
		}
		out[parent.Kind.ForeignKey()] = parent.Ref.RemoteID
	}

	return out, nil
}
