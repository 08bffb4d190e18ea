// Package apierr переводит доменные ошибки в ответы problem+json
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"worksync/internal/domain/entity"
	"worksync/internal/domain/remote"
)

// Status HTTP-статус для доменной ошибки
func Status(err error) int {
	switch {
	case errors.Is(err, remote.ErrNotFound), errors.Is(err, remote.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, remote.ErrUploadUsed), errors.Is(err, remote.ErrUploadExpired):
		return http.StatusGone
	case errors.Is(err, remote.ErrInvalidParent),
		errors.Is(err, remote.ErrParentNotFound),
		errors.Is(err, remote.ErrInvalidFileName),
		errors.Is(err, entity.ErrUnknownType):
		return http.StatusUnprocessableEntity
	case errors.Is(err, remote.ErrDigestMismatch):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// From ошибка huma для доменной ошибки; внутренние детали наружу не отдаются
func From(err error) error {
	status := Status(err)
	if status == http.StatusInternalServerError {
		return huma.Error500InternalServerError("internal error")
	}
	return huma.NewError(status, err.Error())
}

// Write пишет problem+json для обработчиков вне huma
func Write(w http.ResponseWriter, err error) {
	status := Status(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal error"
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(huma.ErrorModel{
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}
