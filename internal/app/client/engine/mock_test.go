package engine

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"worksync/internal/app/client/connectivity"
	"worksync/internal/app/client/gateway"
	"worksync/internal/app/client/storage"
	"worksync/internal/domain/entity"
	"worksync/internal/domain/queue"
)

// MockGateway мок удаленной системы
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Create(ctx context.Context, t entity.Type, payload entity.Fields) (int64, error) {
	args := m.Called(ctx, t, payload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGateway) Update(ctx context.Context, t entity.Type, remoteID int64, patch entity.Fields) error {
	args := m.Called(ctx, t, remoteID, patch)
	return args.Error(0)
}

func (m *MockGateway) Delete(ctx context.Context, t entity.Type, remoteID int64) error {
	args := m.Called(ctx, t, remoteID)
	return args.Error(0)
}

func (m *MockGateway) RequestUpload(ctx context.Context, fileName, mimeType string) (*gateway.UploadTicket, error) {
	args := m.Called(ctx, fileName, mimeType)
	ticket, _ := args.Get(0).(*gateway.UploadTicket)
	return ticket, args.Error(1)
}

func (m *MockGateway) Transfer(ctx context.Context, target, mimeType string, data []byte) <-chan gateway.TransferEvent {
	args := m.Called(ctx, target, mimeType, data)
	return args.Get(0).(<-chan gateway.TransferEvent)
}

func (m *MockGateway) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// transferEvents готовый закрытый поток событий передачи
func transferEvents(evs ...gateway.TransferEvent) <-chan gateway.TransferEvent {
	ch := make(chan gateway.TransferEvent, len(evs))
	for _, ev := range evs {
		ch <- ev
	}
	close(ch)
	return ch
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *Engine
	store  *storage.SQLiteStorage
	gw     *MockGateway
	signal *connectivity.Manual
	clock  *fakeClock

	mu     sync.Mutex
	events []Event
}

func (env *testEnv) observe(ev Event) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.events = append(env.events, ev)
}

func (env *testEnv) eventsOf(kind EventKind) []Event {
	env.mu.Lock()
	defer env.mu.Unlock()

	var out []Event
	for _, ev := range env.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

var testStart = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewSQLiteStorage(storage.MemoryPath, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		store:  store,
		gw:     new(MockGateway),
		signal: connectivity.NewManual(true),
		clock:  &fakeClock{now: testStart},
	}

	env.engine = New(store, store, env.gw, env.signal, Config{
		Interval: time.Hour,
		Now:      env.clock.Now,
		Observer: env.observe,
	}, log)

	return env
}

// write сохраняет сущность локально и ставит мутацию в очередь, как это делает приложение
func (env *testEnv) write(t *testing.T, op queue.Operation, e *entity.Entity) *queue.Item {
	t.Helper()
	ctx := context.Background()

	if e.TempID == "" && e.RemoteID == 0 {
		e.TempID = entity.NewTempID()
	}
	require.NoError(t, env.store.Put(ctx, e))

	item, err := queue.NewItem(op, e)
	require.NoError(t, err)
	require.NoError(t, env.store.Enqueue(ctx, item))

	return item
}

func (env *testEnv) item(t *testing.T, id int64) *queue.Item {
	t.Helper()
	item, err := env.store.GetItem(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (env *testEnv) record(t *testing.T, typ entity.Type, tempID string) *entity.Entity {
	t.Helper()
	e, err := env.store.FindByTempID(context.Background(), typ, tempID)
	require.NoError(t, err)
	return e
}
