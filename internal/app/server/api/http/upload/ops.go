package upload

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) requestOp() huma.Operation {
	return huma.Operation{
		OperationID:   "uploads-request",
		Method:        http.MethodPost,
		Path:          "/api/v1/uploads",
		Summary:       "Запросить загрузку файла",
		Description:   "Выдает одноразовый адрес для PUT содержимого и публичный адрес файла. Адрес загрузки ограничен по времени.",
		Tags:          []string{"uploads"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}
