package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"worksync/internal/app/server/api"
	"worksync/internal/app/server/config"
	"worksync/internal/domain/remote"
	"worksync/internal/infrastructure/storage/blob"
	"worksync/internal/infrastructure/storage/memory"
	"worksync/internal/infrastructure/storage/postgres"
	"worksync/internal/utils/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Сервер остановлен с ошибкой", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	service, closeStore, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	srv := &http.Server{
		Addr:              cfg.Server.RunAddress,
		Handler:           api.New(service, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Сервер запущен", "address", cfg.Server.RunAddress, "public_url", cfg.Server.PublicBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Остановка сервера")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newService собирает сервис поверх PostgreSQL или памяти, если адрес БД не задан
func newService(ctx context.Context, cfg *config.Config, log *slog.Logger) (*remote.Service, func(), error) {
	blobs, err := blob.NewDisk(cfg.Storage.BlobDir)
	if err != nil {
		return nil, nil, err
	}

	opts := remote.Options{
		PublicBaseURL: cfg.Server.PublicBaseURL,
		UploadTTL:     cfg.Server.UploadTTL,
	}

	if cfg.DB.DatabaseURI == "" {
		log.Warn("DATABASE_URI не задан, данные хранятся в памяти")
		store := memory.New()
		return remote.NewService(store, store, blobs, opts, log), func() {}, nil
	}

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	entities := postgres.NewEntityRepository(storage.Pool(), log)
	uploads := postgres.NewUploadRepository(storage.Pool(), log)

	return remote.NewService(entities, uploads, blobs, opts, log), func() { _ = storage.Close() }, nil
}
