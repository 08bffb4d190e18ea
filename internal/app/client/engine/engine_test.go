package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"worksync/internal/app/client/gateway"
	"worksync/internal/domain/entity"
	"worksync/internal/domain/queue"
)

func work(name string) *entity.Entity {
	return &entity.Entity{Type: entity.TypeWork, Fields: entity.Fields{"name": name}}
}

func progressLog(parent entity.Ref, percent int) *entity.Entity {
	return &entity.Entity{
		Type:   entity.TypeProgressLog,
		Parent: entity.WorkParent(parent),
		Fields: entity.Fields{"percent": percent},
	}
}

func hasKey(key string, want any) any {
	return mock.MatchedBy(func(p entity.Fields) bool {
		return p[key] == want
	})
}

func TestProcessQueue_IdempotentWhenNothingReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)

	// Элемент отложен: повторные циклы до next_retry ничего не меняют
	w := work("Фундамент")
	item := env.write(t, queue.OpCreate, w)
	env.gw.On("Create", mock.Anything, entity.TypeWork, mock.Anything).
		Return(int64(0), errors.New("timeout")).Once()

	_, err = env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	before := env.item(t, item.ID)

	for i := 0; i < 3; i++ {
		res, err = env.engine.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.Processed)
	}

	after := env.item(t, item.ID)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Attempts, after.Attempts)
	assert.Equal(t, before.NextRetry, after.NextRetry)
	env.gw.AssertNumberOfCalls(t, "Create", 1)
}

func TestProcessQueue_OfflineNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item := env.write(t, queue.OpCreate, work("Кровля"))
	env.signal.Set(false)

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.True(t, res.Offline)
	assert.Zero(t, res.Processed)

	env.gw.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	got := env.item(t, item.ID)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Zero(t, got.Attempts)
}

// Работа и запись о ходе работ созданы офлайн, затем появилась сеть
func TestProcessQueue_ParentResolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("Стены")
	w.TempID = "temp_w1"
	env.write(t, queue.OpCreate, w)
	pl := progressLog(entity.TempRef("temp_w1"), 30)
	plItem := env.write(t, queue.OpCreate, pl)

	var parentAfterWork *entity.ParentRef
	env.engine.observer = func(ev Event) {
		env.observe(ev)
		if ev.Kind == EventCompleted && ev.Item.EntityType == entity.TypeWork {
			parentAfterWork = env.record(t, entity.TypeProgressLog, pl.TempID).Parent
		}
	}

	env.gw.On("Create", mock.Anything, entity.TypeWork, hasKey("name", "Стены")).
		Return(int64(42), nil).Once()
	env.gw.On("Create", mock.Anything, entity.TypeProgressLog, hasKey("work_id", int64(42))).
		Return(int64(7), nil).Once()

	_, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)

	require.NotNil(t, parentAfterWork)
	assert.Equal(t, entity.WorkParent(entity.RemoteRef(42)), parentAfterWork)

	gotWork := env.record(t, entity.TypeWork, "temp_w1")
	assert.Equal(t, int64(42), gotWork.RemoteID)
	assert.Equal(t, entity.SyncSynced, gotWork.SyncStatus)

	// Ребенок стоит в очереди после родителя и читает уже переназначенную ссылку,
	// поэтому оба создания уходят в первом цикле; второй цикл ничего не отправляет
	env.gw.AssertNumberOfCalls(t, "Create", 2)
	assert.Equal(t, queue.StatusCompleted, env.item(t, plItem.ID).Status)

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	env.gw.AssertNumberOfCalls(t, "Create", 2)

	gotLog := env.record(t, entity.TypeProgressLog, pl.TempID)
	assert.Equal(t, int64(7), gotLog.RemoteID)
	assert.Equal(t, entity.SyncSynced, gotLog.SyncStatus)
	assert.Equal(t, queue.StatusCompleted, env.item(t, plItem.ID).Status)
	env.gw.AssertExpectations(t)
}

func TestProcessQueue_ChildBeforeParentRetries(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("Фасад")
	w.TempID = entity.NewTempID()
	require.NoError(t, env.store.Put(ctx, w))

	// Ребенок поставлен в очередь раньше родителя
	pl := progressLog(w.Ref(), 50)
	plItem := env.write(t, queue.OpCreate, pl)
	workItem, err := queue.NewItem(queue.OpCreate, w)
	require.NoError(t, err)
	require.NoError(t, env.store.Enqueue(ctx, workItem))

	env.gw.On("Create", mock.Anything, entity.TypeWork, mock.Anything).Return(int64(100), nil).Once()
	env.gw.On("Create", mock.Anything, entity.TypeProgressLog, hasKey("work_id", int64(100))).
		Return(int64(101), nil).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rescheduled)
	assert.ErrorIs(t, res.Errors[plItem.ID], ErrDependencyNotReady)

	got := env.item(t, plItem.ID)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.NextRetry)
	assert.True(t, got.NextRetry.Equal(testStart.Add(2*time.Minute)))
	assert.Contains(t, got.Error, "dependency not ready")

	// Ссылка уже переведена на постоянный идентификатор
	assert.Equal(t, int64(100), env.record(t, entity.TypeProgressLog, pl.TempID).Parent.Ref.RemoteID)

	env.clock.Advance(2 * time.Minute)
	res, err = env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, int64(101), env.record(t, entity.TypeProgressLog, pl.TempID).RemoteID)
	env.gw.AssertExpectations(t)
}

func TestProcessQueue_PropagatesToAllDependents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("Перекрытие")
	env.write(t, queue.OpCreate, w)

	children := []*entity.Entity{
		progressLog(w.Ref(), 10),
		progressLog(w.Ref(), 20),
		{Type: entity.TypeComment, Parent: entity.WorkParent(w.Ref()), Fields: entity.Fields{"text": "ok"}},
	}
	for _, c := range children {
		c.TempID = entity.NewTempID()
		require.NoError(t, env.store.Put(ctx, c))
	}

	env.gw.On("Create", mock.Anything, entity.TypeWork, mock.Anything).Return(int64(9), nil).Once()

	_, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)

	for _, c := range children {
		got := env.record(t, c.Type, c.TempID)
		assert.Equal(t, entity.WorkParent(entity.RemoteRef(9)), got.Parent)
	}

	stale, err := env.store.List(ctx, entity.Filter{Parent: entity.WorkParent(w.Ref())})
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestProcessQueue_BackoffSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item := env.write(t, queue.OpCreate, work("Лестница"))
	env.gw.On("Create", mock.Anything, entity.TypeWork, mock.Anything).
		Return(int64(0), errors.New("connection reset"))

	for attempt := 1; attempt < queue.DefaultMaxAttempts; attempt++ {
		failedAt := env.clock.Now()
		_, err := env.engine.ProcessQueue(ctx)
		require.NoError(t, err)

		got := env.item(t, item.ID)
		require.Equal(t, attempt, got.Attempts)
		require.Equal(t, queue.StatusPending, got.Status)
		require.NotNil(t, got.NextRetry)
		want := failedAt.Add(time.Duration(1<<attempt) * time.Minute)
		assert.True(t, got.NextRetry.Equal(want), "attempt %d: next_retry %s, want %s", attempt, got.NextRetry, want)

		// До next_retry элемент не выбирается
		env.clock.Set(want.Add(-time.Second))
		res, err := env.engine.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Zero(t, res.Processed)

		env.clock.Set(want)
	}

	env.gw.AssertNumberOfCalls(t, "Create", queue.DefaultMaxAttempts-1)
}

// Пять ошибок подряд исчерпывают попытки
func TestProcessQueue_TerminalFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("Кровля")
	item := env.write(t, queue.OpCreate, w)
	env.gw.On("Create", mock.Anything, entity.TypeWork, mock.Anything).
		Return(int64(0), &gateway.StatusError{Code: http.StatusBadGateway})

	for i := 0; i < queue.DefaultMaxAttempts; i++ {
		_, err := env.engine.ProcessQueue(ctx)
		require.NoError(t, err)
		env.clock.Advance(24 * time.Hour)
	}

	got := env.item(t, item.ID)
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Equal(t, 5, got.Attempts)
	assert.Nil(t, got.NextRetry)
	assert.Contains(t, got.Error, "502")

	ent := env.record(t, entity.TypeWork, w.TempID)
	assert.Equal(t, entity.SyncError, ent.SyncStatus)
	assert.NotEmpty(t, ent.SyncError)
	assert.Len(t, env.eventsOf(EventFailed), 1)

	env.clock.Advance(365 * 24 * time.Hour)
	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	env.gw.AssertNumberOfCalls(t, "Create", 5)
}

// Отклонения 4xx повторяются так же, как временные ошибки
func TestProcessQueue_ValidationRejectionIsRetried(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item := env.write(t, queue.OpCreate, work(""))
	env.gw.On("Create", mock.Anything, entity.TypeWork, mock.Anything).
		Return(int64(0), &gateway.StatusError{Code: http.StatusUnprocessableEntity, Message: "name is required"}).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rescheduled)
	assert.Zero(t, res.Failed)

	got := env.item(t, item.ID)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts)
	require.NotNil(t, got.NextRetry)
	assert.True(t, got.NextRetry.Equal(testStart.Add(2*time.Minute)))
}

func TestProcessQueue_UpdateWaitsForCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("v1")
	createItem := env.write(t, queue.OpCreate, w)
	w.Fields["name"] = "v2"
	updateItem := env.write(t, queue.OpUpdate, w)

	env.gw.On("Create", mock.Anything, entity.TypeWork, mock.Anything).
		Return(int64(0), errors.New("503")).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rescheduled)
	assert.ErrorIs(t, res.Errors[updateItem.ID], ErrDependencyNotReady)

	env.gw.On("Create", mock.Anything, entity.TypeWork, hasKey("name", "v1")).Return(int64(5), nil).Once()
	env.gw.On("Update", mock.Anything, entity.TypeWork, int64(5), hasKey("name", "v2")).Return(nil).Once()

	env.clock.Advance(2 * time.Minute)
	res, err = env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Completed)

	assert.Equal(t, queue.StatusCompleted, env.item(t, createItem.ID).Status)
	assert.Equal(t, queue.StatusCompleted, env.item(t, updateItem.ID).Status)
	env.gw.AssertExpectations(t)
}

func TestProcessQueue_Delete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("Снос")
	w.RemoteID = 77
	w.SyncStatus = entity.SyncSynced
	require.NoError(t, env.store.Put(ctx, w))
	w.Deleted = true
	item := env.write(t, queue.OpDelete, w)
	assert.Equal(t, "77", item.EntityID)

	env.gw.On("Delete", mock.Anything, entity.TypeWork, int64(77)).Return(nil).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)

	got, err := env.store.FindByRemoteID(ctx, entity.TypeWork, 77)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, entity.SyncSynced, got.SyncStatus)
	env.gw.AssertExpectations(t)
}

// Правки, сделанные во время сетевого вызова, не затираются результатом синхронизации
func TestProcessQueue_LocalEditsDuringCallSurvive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("old")
	env.write(t, queue.OpCreate, w)

	env.gw.On("Create", mock.Anything, entity.TypeWork, hasKey("name", "old")).
		Run(func(args mock.Arguments) {
			require.NoError(t, env.store.SaveFields(ctx, entity.TypeWork, w.LocalKey, entity.Fields{"name": "new"}))
			require.NoError(t, env.store.MarkDeleted(ctx, entity.TypeWork, w.LocalKey))
		}).
		Return(int64(42), nil).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)

	got := env.record(t, entity.TypeWork, w.TempID)
	assert.Equal(t, int64(42), got.RemoteID)
	assert.Equal(t, "new", got.Fields["name"])
	assert.True(t, got.Deleted)
	assert.Equal(t, entity.SyncPending, got.SyncStatus)
}

type failingEntities struct {
	entity.Repository
}

func (f *failingEntities) SetSyncState(context.Context, entity.Type, int64, entity.SyncStatus, string, *time.Time) error {
	return errors.New("disk I/O error")
}

func TestProcessQueue_LocalStoreErrorAbortsCycle(t *testing.T) {
	env := newTestEnv(t)
	env.engine.entities = &failingEntities{Repository: env.store}
	ctx := context.Background()

	first := env.write(t, queue.OpCreate, work("a"))
	second := env.write(t, queue.OpCreate, work("b"))

	res, err := env.engine.ProcessQueue(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocalStore)
	assert.Equal(t, 1, res.Processed)

	// Ошибка записана на элемент, следующий элемент не начат
	got := env.item(t, first.ID)
	assert.Equal(t, 1, got.Attempts)
	assert.Contains(t, got.Error, "disk I/O error")
	assert.Equal(t, queue.StatusPending, env.item(t, second.ID).Status)
	assert.Zero(t, env.item(t, second.ID).Attempts)
	env.gw.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessQueue_ConcurrentCallsAreSerialized(t *testing.T) {
	env := newTestEnv(t)

	env.write(t, queue.OpCreate, work("a"))
	env.gw.On("Create", mock.Anything, entity.TypeWork, mock.Anything).
		After(20*time.Millisecond).Return(int64(1), nil).Once()

	results := make(chan *Result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, err := env.engine.ProcessQueue(context.Background())
			assert.NoError(t, err)
			results <- res
		}()
	}

	total := (<-results).Processed + (<-results).Processed
	assert.Equal(t, 1, total)
	env.gw.AssertNumberOfCalls(t, "Create", 1)
}
