package queue

import "time"

// maxBackoffShift ограничивает сдвиг, чтобы не переполнить time.Duration
const maxBackoffShift = 20

// Backoff задержка перед следующей попыткой: 2^attempts минут
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > maxBackoffShift {
		attempts = maxBackoffShift
	}
	return time.Duration(1<<uint(attempts)) * time.Minute
}

// NextRetry момент, начиная с которого элемент снова может быть выбран
func NextRetry(failedAt time.Time, attempts int) time.Time {
	return failedAt.Add(Backoff(attempts))
}
