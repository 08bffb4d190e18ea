package client

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/exp/slog"

	"worksync/internal/app/client/config"
	"worksync/internal/app/client/connectivity"
	"worksync/internal/app/client/engine"
	"worksync/internal/app/client/gateway"
	"worksync/internal/app/client/storage"
	"worksync/internal/domain/entity"
	"worksync/internal/domain/queue"
)

// Options параметры сборки приложения
type Options struct {
	// Offline не опрашивать сервер: движок не запускается, изменения копятся в очереди
	Offline  bool
	Observer engine.Observer
}

// App корень композиции клиента: хранилище, очередь, шлюз, сигнал подключения и движок
type App struct {
	config  *config.Config
	log     *slog.Logger
	storage *storage.SQLiteStorage
	gateway gateway.Gateway
	signal  connectivity.Signal
	probe   *connectivity.Probe
	engine  *engine.Engine

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

func New(cfg *config.Config, log *slog.Logger, opts Options) (*App, error) {
	// Инициализируем локальное хранилище
	// Без локальной базы очередь не переживет перезапуск, поэтому ошибка возвращается
	store, err := storage.NewSQLiteStorage(cfg.DataPath, log)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища %s: %w", cfg.DataPath, err)
	}

	httpCl := gateway.NewHTTPClient(cfg.BaseURL(), log)

	var (
		signal connectivity.Signal
		probe  *connectivity.Probe
	)
	if opts.Offline {
		signal = connectivity.NewManual(false)
	} else {
		probe = connectivity.NewProbe(httpCl, cfg.ProbePeriod(), log)
		signal = probe
	}

	app := newApp(cfg, log, store, httpCl, signal, opts.Observer)
	app.probe = probe

	if err := app.recover(context.Background()); err != nil {
		store.Close()
		return nil, err
	}

	return app, nil
}

func newApp(
	cfg *config.Config,
	log *slog.Logger,
	store *storage.SQLiteStorage,
	gw gateway.Gateway,
	signal connectivity.Signal,
	observer engine.Observer,
) *App {
	eng := engine.New(store, store, gw, signal, engine.Config{
		Interval: cfg.SyncPeriod(),
		Observer: observer,
	}, log)

	return &App{
		config:  cfg,
		log:     log,
		storage: store,
		gateway: gw,
		signal:  signal,
		engine:  eng,
	}
}

// recover возвращает в очередь элементы, оставшиеся в processing после аварийного завершения
func (a *App) recover(ctx context.Context) error {
	n, err := a.storage.RecoverProcessing(ctx)
	if err != nil {
		return fmt.Errorf("ошибка восстановления очереди: %w", err)
	}
	if n > 0 {
		a.log.Warn("Восстановлены незавершенные элементы очереди", "count", n)
	}
	return nil
}

// Run связывает жизненный цикл движка с сигналом подключения до отмены контекста
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	changes, unsubscribe := a.signal.Subscribe()
	defer unsubscribe()

	if a.probe != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.probe.Run(ctx)
		}()
	}

	a.log.Info("Клиент запущен",
		"server", a.config.ServerAddress,
		"env", a.config.Env,
	)

	if a.signal.Online() {
		a.engine.Start()
	}

	for {
		select {
		case <-ctx.Done():
			a.engine.Stop()
			a.engine.Wait()
			a.wg.Wait()
			a.log.Info("Клиент завершил работу")
			return nil
		case online, ok := <-changes:
			if !ok {
				continue
			}
			if online {
				a.log.Info("Подключение восстановлено, запуск синхронизации")
				a.engine.Start()
			} else {
				a.log.Info("Подключение потеряно, синхронизация остановлена")
				a.engine.Stop()
			}
		}
	}
}

// Shutdown останавливает Run
func (a *App) Shutdown() {
	a.log.Info("Завершение работы клиента...")

	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (a *App) Close() error {
	return a.storage.Close()
}

// SyncNow ручной запуск одного цикла
func (a *App) SyncNow(ctx context.Context) (*engine.Result, error) {
	if a.probe != nil {
		a.probe.Check(ctx)
	}
	return a.engine.ProcessQueue(ctx)
}

// Pause останавливает таймер фоновой синхронизации, ручной запуск продолжает работать
func (a *App) Pause() {
	a.engine.Pause()
	a.log.Info("Фоновая синхронизация приостановлена")
}

func (a *App) Resume() {
	a.engine.Resume()
	a.log.Info("Фоновая синхронизация возобновлена")
}

func (a *App) Engine() *engine.Engine {
	return a.engine
}

// CheckConnection проверяет доступность сервера
func (a *App) CheckConnection(ctx context.Context) error {
	return a.gateway.Health(ctx)
}

// ==================== Optimistic writes ====================

// CreateWork сохраняет работу локально и ставит создание в очередь
func (a *App) CreateWork(ctx context.Context, fields entity.Fields) (*entity.Entity, error) {
	return a.create(ctx, &entity.Entity{Type: entity.TypeWork, Fields: fields}, queue.OpCreate)
}

// AddProgressLog запись о ходе работ для работы workRef (tempId или remoteId)
func (a *App) AddProgressLog(ctx context.Context, workRef string, fields entity.Fields) (*entity.Entity, error) {
	parent, err := a.parentRef(ctx, entity.ParentWork, workRef)
	if err != nil {
		return nil, err
	}
	return a.create(ctx, &entity.Entity{Type: entity.TypeProgressLog, Parent: parent, Fields: fields}, queue.OpCreate)
}

// AddComment комментарий к работе или записи о ходе работ
func (a *App) AddComment(ctx context.Context, kind entity.ParentKind, parentRef string, fields entity.Fields) (*entity.Entity, error) {
	parent, err := a.parentRef(ctx, kind, parentRef)
	if err != nil {
		return nil, err
	}
	return a.create(ctx, &entity.Entity{Type: entity.TypeComment, Parent: parent, Fields: fields}, queue.OpCreate)
}

// Update меняет поля сущности локально и ставит обновление в очередь
func (a *App) Update(ctx context.Context, t entity.Type, ref string, fields entity.Fields) (*entity.Entity, error) {
	ent, err := a.Get(ctx, t, ref)
	if err != nil {
		return nil, err
	}
	if ent.Deleted {
		return nil, fmt.Errorf("%w: %s %s удален", entity.ErrNotFound, t, ref)
	}

	if ent.Fields == nil {
		ent.Fields = entity.Fields{}
	}
	for k, v := range fields {
		ent.Fields[k] = v
	}

	// Только поля: remote_id и ссылку на родителя в это время может записывать движок
	if err := a.storage.SaveFields(ctx, t, ent.LocalKey, ent.Fields); err != nil {
		return nil, fmt.Errorf("ошибка сохранения %s: %w", t, err)
	}
	ent.SyncStatus = entity.SyncPending

	if err := a.enqueue(ctx, queue.OpUpdate, ent); err != nil {
		return nil, err
	}

	return ent, nil
}

// Delete помечает сущность удаленной локально и ставит удаление в очередь. Локальная запись сохраняется
func (a *App) Delete(ctx context.Context, t entity.Type, ref string) (*entity.Entity, error) {
	ent, err := a.Get(ctx, t, ref)
	if err != nil {
		return nil, err
	}
	if ent.Deleted {
		return ent, nil
	}

	if err := a.storage.MarkDeleted(ctx, t, ent.LocalKey); err != nil {
		return nil, fmt.Errorf("ошибка удаления %s: %w", t, err)
	}
	ent.Deleted = true
	ent.SyncStatus = entity.SyncPending

	if err := a.enqueue(ctx, queue.OpDelete, ent); err != nil {
		return nil, err
	}

	return ent, nil
}

// Get находит сущность по tempId или remoteId
func (a *App) Get(ctx context.Context, t entity.Type, ref string) (*entity.Entity, error) {
	r, err := entity.ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if r.Resolved() {
		return a.storage.FindByRemoteID(ctx, t, r.RemoteID)
	}
	return a.storage.FindByTempID(ctx, t, r.TempID)
}

func (a *App) List(ctx context.Context, filter entity.Filter) ([]*entity.Entity, error) {
	return a.storage.List(ctx, filter)
}

func (a *App) create(ctx context.Context, ent *entity.Entity, op queue.Operation) (*entity.Entity, error) {
	if ent.Fields == nil {
		ent.Fields = entity.Fields{}
	}
	ent.TempID = entity.NewTempID()
	ent.SyncStatus = entity.SyncPending

	if err := a.storage.Put(ctx, ent); err != nil {
		return nil, fmt.Errorf("ошибка сохранения %s: %w", ent.Type, err)
	}

	if err := a.enqueue(ctx, op, ent); err != nil {
		return nil, err
	}

	a.log.Debug("Сущность сохранена локально",
		"type", ent.Type,
		"temp_id", ent.TempID,
		"parent", ent.Parent.String(),
	)

	return ent, nil
}

func (a *App) enqueue(ctx context.Context, op queue.Operation, ent *entity.Entity) error {
	item, err := queue.NewItem(op, ent)
	if err != nil {
		return fmt.Errorf("ошибка подготовки элемента очереди: %w", err)
	}
	item.MaxAttempts = a.config.MaxAttempts

	if err := a.storage.Enqueue(ctx, item); err != nil {
		return err
	}

	return nil
}

// parentRef ссылка на родителя: постоянный id, если родитель уже синхронизирован
func (a *App) parentRef(ctx context.Context, kind entity.ParentKind, ref string) (*entity.ParentRef, error) {
	r, err := entity.ParseRef(ref)
	if err != nil {
		return nil, err
	}

	parent, err := a.Get(ctx, kind.Type(), ref)
	switch {
	case errors.Is(err, entity.ErrNotFound) && r.Resolved():
		// Родитель существует только на сервере
		return &entity.ParentRef{Kind: kind, Ref: r}, nil
	case err != nil:
		return nil, fmt.Errorf("родитель %s %s: %w", kind, ref, err)
	}

	return &entity.ParentRef{Kind: kind, Ref: parent.Ref()}, nil
}

// AddAttachment читает файл и ставит двухфазную загрузку в очередь
func (a *App) AddAttachment(ctx context.Context, kind entity.ParentKind, parentRef, path string, fields entity.Fields) (*entity.Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}

	parent, err := a.parentRef(ctx, kind, parentRef)
	if err != nil {
		return nil, err
	}

	name := filepath.Base(path)
	if fields == nil {
		fields = entity.Fields{}
	}
	fields["file_name"] = name

	ent := &entity.Entity{
		Type:   entity.TypeAttachment,
		Parent: parent,
		Fields: fields,
		Upload: &entity.Upload{
			FileName: name,
			MimeType: detectMimeType(name, data),
			Size:     int64(len(data)),
			Payload:  data,
			Status:   entity.UploadPending,
		},
	}

	return a.create(ctx, ent, queue.OpUpload)
}

// detectMimeType тип по расширению, иначе по содержимому
func detectMimeType(name string, data []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

// ==================== Queue ====================

// QueueStatus сводка очереди и элементы, ожидающие синхронизации или внимания пользователя
type QueueStatus struct {
	Counts queue.Counts
	Items  []*queue.Item
	Online  bool
	Syncing bool
	Paused  bool
	Stats   engine.Stats
}

func (a *App) QueueStatus(ctx context.Context) (*QueueStatus, error) {
	counts, err := a.storage.Counts(ctx)
	if err != nil {
		return nil, err
	}

	items, err := a.storage.ListItems(ctx, queue.Filter{
		Statuses: []queue.Status{queue.StatusPending, queue.StatusProcessing, queue.StatusFailed},
	})
	if err != nil {
		return nil, err
	}

	return &QueueStatus{
		Counts: counts,
		Items:  items,
		Online:  a.signal.Online(),
		Syncing: a.engine.IsSyncing(),
		Paused:  a.engine.Paused(),
		Stats:   a.engine.GetStats(),
	}, nil
}

// ClearFailed удаляет окончательно упавший элемент очереди
func (a *App) ClearFailed(ctx context.Context, id int64) error {
	if err := a.storage.Clear(ctx, id); err != nil {
		return err
	}
	a.log.Info("Элемент очереди удален пользователем", "id", id)
	return nil
}
