package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrServer      = errors.New("remote server error")
	ErrUnavailable = errors.New("remote server unavailable")
)

// StatusError ответ сервера со статусом >= 400
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ошибка сервера: статус %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("ошибка сервера: статус %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrServer
}
