package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"

	"worksync/internal/app/client/connectivity"
	"worksync/internal/app/client/gateway"
	"worksync/internal/domain/entity"
	"worksync/internal/domain/queue"
)

const DefaultInterval = 30 * time.Second

type Config struct {
	// Interval период повторяющегося цикла
	Interval time.Duration
	// Now источник времени; по умолчанию time.Now
	Now      func() time.Time
	Observer Observer
}

// Stats статистика работы движка
type Stats struct {
	TotalCycles    int       `json:"total_cycles"`
	TotalCompleted int       `json:"total_completed"`
	TotalFailed    int       `json:"total_failed"`
	TotalRetries   int       `json:"total_retries"`
	LastCycle      time.Time `json:"last_cycle"`
	LastError      string    `json:"last_error,omitempty"`
}

// Engine последовательно разгружает очередь мутаций в удаленную систему
type Engine struct {
	entities entity.Repository
	queue    queue.Repository
	gateway  gateway.Gateway
	signal   connectivity.Signal
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
	observer Observer

	// cycleMu один цикл в каждый момент времени
	cycleMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   Stats

	// generation увеличивается при Stop; цикл не начинает новый элемент после смены поколения
	generation atomic.Uint64
	paused     atomic.Bool
	syncing    atomic.Bool
}

func New(
	entities entity.Repository,
	q queue.Repository,
	gw gateway.Gateway,
	signal connectivity.Signal,
	cfg Config,
	log *slog.Logger,
) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		entities: entities,
		queue:    q,
		gateway:  gw,
		signal:   signal,
		log:      log.With("component", "sync_engine"),
		interval: cfg.Interval,
		now:      cfg.Now,
		observer: cfg.Observer,
	}
}

// Start запускает повторяющийся цикл и немедленную разгрузку. Повторный вызов ничего не делает
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.running = true
	e.cancel = cancel
	e.done = make(chan struct{})

	e.log.Info("Запуск синхронизации", "interval", e.interval)

	go e.loop(ctx, e.done)
}

// Stop останавливает повторяющийся цикл. Текущий сетевой вызов завершается, новый элемент не начинается
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return
	}

	e.generation.Add(1)
	e.cancel()
	e.running = false

	e.log.Info("Синхронизация остановлена")
}

// Wait ожидает завершения горутины последнего запуска
func (e *Engine) Wait() {
	e.mu.Lock()
	done := e.done
	e.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Pause приостанавливает таймер (приложение в фоне); ручной ProcessQueue продолжает работать
func (e *Engine) Pause() {
	e.paused.Store(true)
}

func (e *Engine) Resume() {
	e.paused.Store(false)
}

func (e *Engine) Paused() bool {
	return e.paused.Load()
}

// IsSyncing выполняется ли цикл в данный момент
func (e *Engine) IsSyncing() bool {
	return e.syncing.Load()
}

// GetStats возвращает копию статистики
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.paused.Load() {
				continue
			}
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// Stop не должен прерывать сетевой вызов в полете
	if _, err := e.ProcessQueue(context.WithoutCancel(ctx)); err != nil {
		e.log.Error("Ошибка цикла синхронизации", "error", err)
	}
}

// ProcessQueue выполняет один цикл разгрузки. Конкурентные вызовы выполняются по очереди
func (e *Engine) ProcessQueue(ctx context.Context) (*Result, error) {
	gen := e.generation.Load()

	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()

	e.syncing.Store(true)
	defer e.syncing.Store(false)

	result := &Result{}

	if !e.signal.Online() {
		result.Offline = true
		return result, nil
	}

	items, err := e.queue.SelectReady(ctx, e.now())
	if err != nil {
		return result, fmt.Errorf("%w: выборка очереди: %w", ErrLocalStore, err)
	}
	if len(items) == 0 {
		e.recordStats(result, nil)
		return result, nil
	}

	e.log.Debug("Начало цикла синхронизации", "ready", len(items))

	for _, item := range items {
		if e.generation.Load() != gen {
			result.Stopped = true
			break
		}
		if ctx.Err() != nil {
			break
		}

		if err := e.processItem(ctx, item, result); err != nil {
			e.recordStats(result, err)
			return result, err
		}
	}

	e.recordStats(result, nil)

	e.log.Info("Цикл синхронизации завершен",
		"processed", result.Processed,
		"completed", result.Completed,
		"rescheduled", result.Rescheduled,
		"failed", result.Failed,
		"stopped", result.Stopped,
	)

	return result, nil
}

func (e *Engine) processItem(ctx context.Context, item *queue.Item, result *Result) error {
	if err := e.queue.MarkProcessing(ctx, item.ID); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalStore, err)
	}
	item.Status = queue.StatusProcessing
	result.Processed++
	e.emit(Event{Kind: EventStarted, Item: *item})

	remoteID, err := e.dispatch(ctx, item)
	if err == nil {
		if err := e.queue.MarkCompleted(ctx, item.ID); err != nil {
			return fmt.Errorf("%w: %w", ErrLocalStore, err)
		}
		item.Status = queue.StatusCompleted
		result.Completed++
		e.emit(Event{Kind: EventCompleted, Item: *item, RemoteID: remoteID})
		return nil
	}

	result.addError(item.ID, err)

	if errors.Is(err, ErrLocalStore) {
		// Запись ошибки в очередь по возможности, цикл все равно прерывается
		if ferr := e.fail(ctx, item, err, result); ferr != nil {
			e.log.Error("Не удалось сохранить ошибку элемента", "id", item.ID, "error", ferr)
		}
		return err
	}

	return e.fail(ctx, item, err, result)
}

// fail увеличивает attempts и либо откладывает элемент с экспоненциальной задержкой, либо помечает его failed окончательно
func (e *Engine) fail(ctx context.Context, item *queue.Item, cause error, result *Result) error {
	now := e.now()
	item.Attempts++
	item.Error = cause.Error()

	if item.Exhausted() {
		if err := e.queue.MarkFailed(ctx, item.ID, item.Attempts, item.Error); err != nil {
			return fmt.Errorf("%w: %w", ErrLocalStore, err)
		}
		item.Status = queue.StatusFailed
		item.NextRetry = nil
		result.Failed++

		e.log.Warn("Элемент очереди окончательно не синхронизирован",
			"id", item.ID,
			"operation", item.Operation,
			"entity_type", item.EntityType,
			"entity_id", item.EntityID,
			"attempts", item.Attempts,
			"error", cause,
		)
		e.emit(Event{Kind: EventFailed, Item: *item, Err: cause})
	} else {
		next := queue.NextRetry(now, item.Attempts)
		if err := e.queue.Reschedule(ctx, item.ID, item.Attempts, next, item.Error); err != nil {
			return fmt.Errorf("%w: %w", ErrLocalStore, err)
		}
		item.Status = queue.StatusPending
		item.NextRetry = &next
		result.Rescheduled++

		e.log.Debug("Элемент очереди отложен",
			"id", item.ID,
			"attempts", item.Attempts,
			"next_retry", next,
			"error", cause,
		)
		e.emit(Event{Kind: EventRescheduled, Item: *item, NextRetry: next, Err: cause})
	}

	return e.markEntityError(ctx, item, cause, now)
}

func (e *Engine) markEntityError(ctx context.Context, item *queue.Item, cause error, at time.Time) error {
	ent, err := e.lookup(ctx, item)
	if err != nil {
		if errors.Is(err, ErrLocalStore) {
			return err
		}
		return nil
	}

	if err := e.entities.SetSyncState(ctx, ent.Type, ent.LocalKey, entity.SyncError, cause.Error(), &at); err != nil {
		return fmt.Errorf("%w: %w", ErrLocalStore, err)
	}

	return nil
}

// lookup находит сущность элемента очереди по tempId или remoteId
func (e *Engine) lookup(ctx context.Context, item *queue.Item) (*entity.Entity, error) {
	ref, err := entity.ParseRef(item.EntityID)
	if err != nil {
		return nil, err
	}

	var ent *entity.Entity
	if ref.Resolved() {
		ent, err = e.entities.FindByRemoteID(ctx, item.EntityType, ref.RemoteID)
	} else {
		ent, err = e.entities.FindByTempID(ctx, item.EntityType, ref.TempID)
	}
	if errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalStore, err)
	}

	return ent, nil
}

func (e *Engine) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

func (e *Engine) recordStats(result *Result, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.TotalCycles++
	e.stats.TotalCompleted += result.Completed
	e.stats.TotalFailed += result.Failed
	e.stats.TotalRetries += result.Rescheduled
	e.stats.LastCycle = e.now()
	if err != nil {
		e.stats.LastError = err.Error()
	}
}
