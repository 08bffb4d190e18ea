// GET    /api/v1/health                    # Проба подключения
// POST   /api/v1/entities/{type}           # Создать сущность
// GET    /api/v1/entities/{type}/{id}      # Получить сущность
// PATCH  /api/v1/entities/{type}/{id}      # Обновить сущность
// DELETE /api/v1/entities/{type}/{id}      # Удалить сущность
// POST   /api/v1/uploads                   # Запросить загрузку файла
// PUT    /api/v1/uploads/{token}           # Загрузить содержимое (chi)
// GET    /files/{key}                      # Отдать файл (chi)

package api

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	entitiesAPI "worksync/internal/app/server/api/http/entities"
	healthAPI "worksync/internal/app/server/api/http/health"
	"worksync/internal/app/server/api/http/middleware"
	"worksync/internal/app/server/api/http/middleware/logger"
	uploadAPI "worksync/internal/app/server/api/http/upload"
	"worksync/internal/domain/remote"
)

type Handlers struct {
	Health   *healthAPI.Handler
	Entities *entitiesAPI.Handler
	Upload   *uploadAPI.Handler
}

// New создает *chi.Mux с операциями huma и потоковыми маршрутами загрузки
func New(service remote.Servicer, log *slog.Logger) *chi.Mux {
	mux := chi.NewMux()
	mux.Use(chimw.Recoverer)

	config := huma.DefaultConfig("WorkSync API", "1.0.0")
	API := humachi.New(mux, config)

	loggerMW := logger.New(log)
	h := handlers(service, loggerMW, log)
	h.Health.SetupRoutes(API)
	h.Entities.SetupRoutes(API)
	h.Upload.SetupRoutes(API)

	mux.Group(func(r chi.Router) {
		r.Use(loggerMW.Handler)
		h.Upload.Mount(r)
	})

	return mux
}

func handlers(service remote.Servicer, loggerMW *logger.Logger, log *slog.Logger) *Handlers {
	middlewares := middleware.NewContainer()

	middlewares.Add(loggerMW.Middleware())
	healthHandler := healthAPI.NewHandler(log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	entitiesHandler := entitiesAPI.NewHandler(service, log, middlewares.GetAllAndClear())

	middlewares.Add(loggerMW.Middleware())
	uploadHandler := uploadAPI.NewHandler(service, log, middlewares.GetAllAndClear())

	return &Handlers{
		Health:   healthHandler,
		Entities: entitiesHandler,
		Upload:   uploadHandler,
	}
}
