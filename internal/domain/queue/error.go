package queue

import "errors"

var (
	ErrNotFound  = errors.New("queue item not found")
	ErrNotFailed = errors.New("queue item is not terminally failed")
)
