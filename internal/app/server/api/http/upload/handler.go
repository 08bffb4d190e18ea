package upload

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"golang.org/x/exp/slog"

	"worksync/internal/app/server/api/http/apierr"
	"worksync/internal/domain/remote"
)

// DefaultMaxSize предел тела PUT
const DefaultMaxSize int64 = 512 << 20

type Handler struct {
	service    remote.Servicer
	log        *slog.Logger
	middleware huma.Middlewares
	maxSize    int64
}

func NewHandler(service remote.Servicer, log *slog.Logger, mws huma.Middlewares) *Handler {
	return &Handler{
		service:    service,
		log:        log.With("component", "upload_handler"),
		middleware: mws,
		maxSize:    DefaultMaxSize,
	}
}

func (h *Handler) SetupRoutes(api huma.API) {
	huma.Register(api, h.requestOp(), h.request)
}

// Mount регистрирует потоковые маршруты: тела не проходят через huma целиком в памяти
func (h *Handler) Mount(r chi.Router) {
	r.Put("/api/v1/uploads/{token}", h.store)
	r.Get("/files/{key}", h.serve)
}

func (h *Handler) request(ctx context.Context, input *requestInput) (*requestOutput, error) {
	ticket, err := h.service.RequestUpload(ctx, input.Body.FileName, input.Body.MimeType)
	if err != nil {
		return nil, apierr.From(err)
	}

	return &requestOutput{
		Body: ticketResponse{
			UploadURL: ticket.UploadURL,
			PublicURL: ticket.PublicURL,
			ExpiresAt: ticket.ExpiresAt,
		},
	}, nil
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	body := http.MaxBytesReader(w, r.Body, h.maxSize)
	defer body.Close()

	u, err := h.service.StoreUpload(r.Context(), token, r.Header.Get(remote.DigestHeader), body)
	if err != nil {
		h.log.Warn("Загрузка отклонена", "token", token, "error", err)
		apierr.Write(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(storeResponse{Status: "Ok", Size: u.Size})
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request) {
	u, content, err := h.service.OpenFile(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		apierr.Write(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", u.MimeType)
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(w, r, u.FileName, u.CreatedAt, content)
}
