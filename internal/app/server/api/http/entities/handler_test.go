package entities

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"worksync/internal/domain/entity"
	"worksync/internal/domain/remote"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, t entity.Type, fields entity.Fields) (int64, error) {
	args := m.Called(ctx, t, fields)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockService) Find(ctx context.Context, t entity.Type, id int64) (*remote.Entity, error) {
	args := m.Called(ctx, t, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.Entity), args.Error(1)
}

func (m *MockService) Update(ctx context.Context, t entity.Type, id int64, patch entity.Fields) error {
	args := m.Called(ctx, t, id, patch)
	return args.Error(0)
}

func (m *MockService) Delete(ctx context.Context, t entity.Type, id int64) error {
	args := m.Called(ctx, t, id)
	return args.Error(0)
}

func (m *MockService) RequestUpload(ctx context.Context, fileName, mimeType string) (*remote.Ticket, error) {
	args := m.Called(ctx, fileName, mimeType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.Ticket), args.Error(1)
}

func (m *MockService) StoreUpload(ctx context.Context, token, digest string, body io.Reader) (*remote.Upload, error) {
	args := m.Called(ctx, token, digest, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*remote.Upload), args.Error(1)
}

func (m *MockService) OpenFile(ctx context.Context, key string) (*remote.Upload, io.ReadSeekCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*remote.Upload), args.Get(1).(io.ReadSeekCloser), args.Error(2)
}

func newHandler(svc remote.Servicer) *Handler {
	return NewHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)), huma.Middlewares{})
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestHandler_create(t *testing.T) {
	tests := []struct {
		name       string
		input      *createInput
		setupMock  func(*MockService)
		wantID     int64
		wantStatus int
	}{
		{
			name:  "work",
			input: &createInput{Type: "work", Body: entity.Fields{"name": "Кладка"}},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, entity.TypeWork, entity.Fields{"name": "Кладка"}).Return(int64(7), nil)
			},
			wantID: 7,
		},
		{
			name:  "missing parent",
			input: &createInput{Type: "progress_log", Body: entity.Fields{"work_id": float64(99)}},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, entity.TypeProgressLog, mock.Anything).Return(int64(0), remote.ErrParentNotFound)
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:  "storage failure is hidden",
			input: &createInput{Type: "comment", Body: entity.Fields{"work_id": float64(1)}},
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, entity.TypeComment, mock.Anything).Return(int64(0), errors.New("pq: connection refused"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			out, err := newHandler(svc).create(context.Background(), tt.input)

			if tt.wantStatus != 0 {
				assert.Equal(t, tt.wantStatus, statusOf(t, err))
				assert.NotContains(t, err.Error(), "pq:")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantID, out.Body.ID)
				assert.Equal(t, "Ok", out.Body.Status)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_find(t *testing.T) {
	svc := new(MockService)
	svc.On("Find", mock.Anything, entity.TypeComment, int64(5)).Return(&remote.Entity{
		ID:         5,
		Type:       entity.TypeComment,
		ParentKind: entity.ParentWork,
		ParentID:   2,
		Data:       entity.Fields{"text": "Принято"},
	}, nil)
	svc.On("Find", mock.Anything, entity.TypeComment, int64(6)).Return(nil, remote.ErrNotFound)

	h := newHandler(svc)

	out, err := h.find(context.Background(), &findInput{Type: "comment", ID: 5})
	require.NoError(t, err)
	assert.Equal(t, entity.Fields{"id": int64(5), "work_id": int64(2), "text": "Принято"}, out.Body)

	_, err = h.find(context.Background(), &findInput{Type: "comment", ID: 6})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestHandler_updateAndDelete(t *testing.T) {
	svc := new(MockService)
	patch := entity.Fields{"status": "done"}
	svc.On("Update", mock.Anything, entity.TypeWork, int64(3), patch).Return(nil)
	svc.On("Delete", mock.Anything, entity.TypeWork, int64(3)).Return(nil)

	h := newHandler(svc)

	out, err := h.update(context.Background(), &updateInput{Type: "work", ID: 3, Body: patch})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Body.ID)

	_, err = h.delete(context.Background(), &deleteInput{Type: "work", ID: 3})
	require.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestHandler_Routes(t *testing.T) {
	svc := new(MockService)
	svc.On("Create", mock.Anything, entity.TypeWork, mock.MatchedBy(func(f entity.Fields) bool {
		return f["name"] == "Стяжка"
	})).Return(int64(12), nil)
	svc.On("Delete", mock.Anything, entity.TypeWork, int64(12)).Return(nil)

	_, api := humatest.New(t)
	newHandler(svc).SetupRoutes(api)

	resp := api.Post("/api/v1/entities/work", map[string]any{"name": "Стяжка"})
	assert.Equal(t, http.StatusCreated, resp.Code)
	assert.JSONEq(t, `{"id":12,"status":"Ok"}`, resp.Body.String())

	resp = api.Delete("/api/v1/entities/work/12")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = api.Post("/api/v1/entities/invoice", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
}
