package queue

import (
	"context"
	"time"
)

// Repository долговременная очередь мутаций
type Repository interface {
	// Enqueue добавляет элемент со status=pending и attempts=0
	Enqueue(ctx context.Context, item *Item) error

	// SelectReady готовые к обработке элементы в порядке постановки
	SelectReady(ctx context.Context, now time.Time) ([]*Item, error)

	MarkProcessing(ctx context.Context, id int64) error
	MarkCompleted(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, errMsg string) error
	Reschedule(ctx context.Context, id int64, attempts int, nextRetry time.Time, errMsg string) error

	GetItem(ctx context.Context, id int64) (*Item, error)
	ListItems(ctx context.Context, filter Filter) ([]*Item, error)
	Counts(ctx context.Context) (Counts, error)

	// Clear удаляет окончательно упавший элемент по решению пользователя
	Clear(ctx context.Context, id int64) error

	// RecoverProcessing возвращает в pending элементы, зависшие в processing после падения
	RecoverProcessing(ctx context.Context) (int64, error)
}
