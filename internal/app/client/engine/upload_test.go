package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"worksync/internal/app/client/gateway"
	"worksync/internal/domain/entity"
	"worksync/internal/domain/queue"
)

const publicURL = "https://files.example.com/files/3f1c"

var ticket = &gateway.UploadTicket{
	UploadURL: "https://files.example.com/api/v1/uploads/tok-1",
	PublicURL: publicURL,
	ExpiresAt: testStart.Add(15 * time.Minute),
}

func attachment(parent *entity.ParentRef, size int) *entity.Entity {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return &entity.Entity{
		Type:   entity.TypeAttachment,
		Parent: parent,
		Fields: entity.Fields{"caption": "фото"},
		Upload: &entity.Upload{
			FileName: "site.jpg",
			MimeType: "image/jpeg",
			Size:     int64(size),
			Payload:  data,
		},
	}
}

func progressValues(events []Event) []int {
	var out []int
	for _, ev := range events {
		out = append(out, ev.Progress)
	}
	return out
}

func TestUpload_TwoPhase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("Фундамент")
	w.RemoteID = 42
	require.NoError(t, env.store.Put(ctx, w))

	a := attachment(entity.WorkParent(entity.RemoteRef(42)), 2<<20)
	item := env.write(t, queue.OpUpload, a)

	env.gw.On("RequestUpload", mock.Anything, "site.jpg", "image/jpeg").Return(ticket, nil).Once()
	env.gw.On("Transfer", mock.Anything, ticket.UploadURL, "image/jpeg", a.Upload.Payload).
		Return(transferEvents(
			gateway.TransferEvent{Progress: 0},
			gateway.TransferEvent{Progress: 25},
			gateway.TransferEvent{Progress: 25},
			gateway.TransferEvent{Progress: 60},
			gateway.TransferEvent{Progress: 99},
			gateway.TransferEvent{Progress: 100, Done: true},
		)).Once()

	metadata := mock.MatchedBy(func(p entity.Fields) bool {
		return p["file_url"] == publicURL && p["work_id"] == int64(42) && p["file_name"] == "site.jpg"
	})
	env.gw.On("Create", mock.Anything, entity.TypeAttachment, metadata).
		Run(func(args mock.Arguments) {
			// Метаданные создаются только после 100%
			got := env.record(t, entity.TypeAttachment, a.TempID)
			assert.Equal(t, 100, got.Upload.Progress)
			assert.Equal(t, entity.UploadUploaded, got.Upload.Status)
		}).
		Return(int64(555), nil).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)

	assert.Equal(t, []int{25, 60, 99, 100}, progressValues(env.eventsOf(EventProgress)))

	got := env.record(t, entity.TypeAttachment, a.TempID)
	assert.Equal(t, int64(555), got.RemoteID)
	assert.Equal(t, entity.SyncSynced, got.SyncStatus)
	assert.Equal(t, publicURL, got.Upload.FileURL)
	assert.Empty(t, got.Upload.Payload)
	assert.Equal(t, queue.StatusCompleted, env.item(t, item.ID).Status)
	env.gw.AssertExpectations(t)
	env.gw.AssertNumberOfCalls(t, "Create", 1)
}

func TestUpload_TransferFailureIsNotUploaded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := attachment(entity.WorkParent(entity.RemoteRef(42)), 1024)
	item := env.write(t, queue.OpUpload, a)

	env.gw.On("RequestUpload", mock.Anything, "site.jpg", "image/jpeg").Return(ticket, nil)
	env.gw.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(transferEvents(
			gateway.TransferEvent{Progress: 0},
			gateway.TransferEvent{Progress: 40},
			gateway.TransferEvent{Err: errors.New("connection reset by peer")},
		)).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rescheduled)

	got := env.record(t, entity.TypeAttachment, a.TempID)
	assert.Equal(t, entity.UploadError, got.Upload.Status)
	assert.Equal(t, 40, got.Upload.Progress)
	assert.Empty(t, got.Upload.FileURL)
	assert.NotEmpty(t, got.Upload.Payload)
	assert.Equal(t, 1, env.item(t, item.ID).Attempts)
	env.gw.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)

	// Новая попытка начинает прогресс с нуля
	env.gw.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(transferEvents(
			gateway.TransferEvent{Progress: 0},
			gateway.TransferEvent{Progress: 10},
			gateway.TransferEvent{Progress: 100, Done: true},
		)).Once()
	env.gw.On("Create", mock.Anything, entity.TypeAttachment, mock.Anything).Return(int64(8), nil).Once()

	env.clock.Advance(2 * time.Minute)
	res, err = env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, []int{40, 10, 100}, progressValues(env.eventsOf(EventProgress)))
}

func TestUpload_RequestUploadFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := attachment(entity.WorkParent(entity.RemoteRef(42)), 16)
	env.write(t, queue.OpUpload, a)

	env.gw.On("RequestUpload", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &gateway.StatusError{Code: 503}).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rescheduled)

	got := env.record(t, entity.TypeAttachment, a.TempID)
	assert.Equal(t, entity.UploadError, got.Upload.Status)
	assert.NotEqual(t, entity.UploadUploaded, got.Upload.Status)
	env.gw.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_MetadataRetrySkipsTransfer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := work("Отделка")
	w.TempID = entity.NewTempID()
	require.NoError(t, env.store.Put(ctx, w))

	// Родитель еще не синхронизирован: байты загружаются, метаданные ждут
	a := attachment(entity.WorkParent(w.Ref()), 64)
	item := env.write(t, queue.OpUpload, a)

	env.gw.On("RequestUpload", mock.Anything, mock.Anything, mock.Anything).Return(ticket, nil).Once()
	env.gw.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(transferEvents(gateway.TransferEvent{Progress: 100, Done: true})).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Errors[item.ID], ErrDependencyNotReady)

	got := env.record(t, entity.TypeAttachment, a.TempID)
	assert.Equal(t, entity.UploadUploaded, got.Upload.Status)
	assert.Equal(t, publicURL, got.Upload.FileURL)
	assert.Zero(t, got.RemoteID)

	// Родитель синхронизирован
	w.RemoteID = 12
	require.NoError(t, env.store.Put(ctx, w))
	_, err = env.store.ReassignParent(ctx, entity.TypeAttachment, entity.ParentWork, w.TempID, 12)
	require.NoError(t, err)

	env.gw.On("Create", mock.Anything, entity.TypeAttachment, hasKey("work_id", int64(12))).
		Return(int64(90), nil).Once()

	env.clock.Advance(2 * time.Minute)
	res, err = env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)

	env.gw.AssertNumberOfCalls(t, "RequestUpload", 1)
	env.gw.AssertNumberOfCalls(t, "Transfer", 1)
	assert.Equal(t, int64(90), env.record(t, entity.TypeAttachment, a.TempID).RemoteID)
}

func TestUpload_InterruptedStream(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := attachment(entity.CommentParent(entity.RemoteRef(3)), 8)
	item := env.write(t, queue.OpUpload, a)

	env.gw.On("RequestUpload", mock.Anything, mock.Anything, mock.Anything).Return(ticket, nil).Once()
	env.gw.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(transferEvents(gateway.TransferEvent{Progress: 50})).Once()

	res, err := env.engine.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Errors[item.ID], ErrTransferInterrupted)
	assert.Equal(t, entity.UploadError, env.record(t, entity.TypeAttachment, a.TempID).Upload.Status)
}
