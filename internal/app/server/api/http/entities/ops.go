package entities

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h *Handler) createOp() huma.Operation {
	return huma.Operation{
		OperationID:   "entities-create",
		Method:        http.MethodPost,
		Path:          "/api/v1/entities/{type}",
		Summary:       "Создать сущность",
		Description:   "Типы: " + typeEnum + ". Дочерние сущности ссылаются на родителя через work_id, progress_log_id или comment_id.",
		Tags:          []string{"entities"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   h.middleware,
	}
}

func (h *Handler) findOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-find",
		Method:      http.MethodGet,
		Path:        "/api/v1/entities/{type}/{id}",
		Summary:     "Получить сущность",
		Tags:        []string{"entities"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) updateOp() huma.Operation {
	return huma.Operation{
		OperationID: "entities-update",
		Method:      http.MethodPatch,
		Path:        "/api/v1/entities/{type}/{id}",
		Summary:     "Обновить сущность",
		Description: "Частичное обновление: переданные поля сливаются с сохраненными.",
		Tags:        []string{"entities"},
		Middlewares: h.middleware,
	}
}

func (h *Handler) deleteOp() huma.Operation {
	return huma.Operation{
		OperationID:   "entities-delete",
		Method:        http.MethodDelete,
		Path:          "/api/v1/entities/{type}/{id}",
		Summary:       "Удалить сущность",
		Tags:          []string{"entities"},
		DefaultStatus: http.StatusNoContent,
		Middlewares:   h.middleware,
	}
}
