package entities

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/exp/slog"

	"worksync/internal/app/server/api/http/apierr"
	"worksync/internal/domain/entity"
	"worksync/internal/domain/remote"
)

type Handler struct {
	service    remote.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
}

func NewHandler(service remote.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "entities_handler"),
		middleware: mws,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.createOp(), h.create)
	huma.Register(api, h.findOp(), h.find)
	huma.Register(api, h.updateOp(), h.update)
	huma.Register(api, h.deleteOp(), h.delete)
}

func (h *Handler) create(ctx context.Context, input *createInput) (*output, error) {
	t, err := entity.ParseType(input.Type)
	if err != nil {
		return nil, apierr.From(err)
	}

	id, err := h.service.Create(ctx, t, input.Body)
	if err != nil {
		h.log.Warn("Не удалось создать сущность", "type", t, "error", err)
		return nil, apierr.From(err)
	}

	return &output{
		Body: response{ID: id, Status: "Ok"},
	}, nil
}

func (h *Handler) find(ctx context.Context, input *findInput) (*findOutput, error) {
	t, err := entity.ParseType(input.Type)
	if err != nil {
		return nil, apierr.From(err)
	}

	ent, err := h.service.Find(ctx, t, input.ID)
	if err != nil {
		return nil, apierr.From(err)
	}

	return &findOutput{Body: ent.Fields()}, nil
}

func (h *Handler) update(ctx context.Context, input *updateInput) (*output, error) {
	t, err := entity.ParseType(input.Type)
	if err != nil {
		return nil, apierr.From(err)
	}

	if err := h.service.Update(ctx, t, input.ID, input.Body); err != nil {
		h.log.Warn("Не удалось обновить сущность", "type", t, "id", input.ID, "error", err)
		return nil, apierr.From(err)
	}

	return &output{
		Body: response{ID: input.ID, Status: "Ok"},
	}, nil
}

// delete идемпотентен: повторное удаление уже удаленной сущности успешно
func (h *Handler) delete(ctx context.Context, input *deleteInput) (*deleteOutput, error) {
	t, err := entity.ParseType(input.Type)
	if err != nil {
		return nil, apierr.From(err)
	}

	if err := h.service.Delete(ctx, t, input.ID); err != nil {
		return nil, apierr.From(err)
	}

	return &deleteOutput{}, nil
}
