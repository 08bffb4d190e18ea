package engine

import (
	"time"

	"worksync/internal/domain/queue"
)

type EventKind string

const (
	EventStarted     EventKind = "started"
	EventCompleted   EventKind = "completed"
	EventRescheduled EventKind = "rescheduled"
	EventFailed      EventKind = "failed"
	EventProgress    EventKind = "progress"
)

// Event уведомление наблюдателю о ходе цикла
type Event struct {
	Kind      EventKind
	Item      queue.Item
	RemoteID  int64
	Progress  int
	NextRetry time.Time
	Err       error
}

// Observer вызывается синхронно в горутине цикла и не должен блокироваться
type Observer func(Event)

// Result итог одного цикла
type Result struct {
	Offline     bool
	Stopped     bool
	Processed   int
	Completed   int
	Rescheduled int
	Failed      int
	Errors      map[int64]error
}

func (r *Result) addError(id int64, err error) {
	if r.Errors == nil {
		r.Errors = make(map[int64]error)
	}
	r.Errors[id] = err
}
