package connectivity

import (
	"context"
	"time"

	"golang.org/x/exp/slog"
)

// HealthChecker проверка доступности удаленной системы
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Probe определяет подключение периодическим запросом health
type Probe struct {
	state
	checker  HealthChecker
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
}

func NewProbe(checker HealthChecker, interval time.Duration, log *slog.Logger) *Probe {
	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}

	return &Probe{
		checker:  checker,
		interval: interval,
		timeout:  timeout,
		log:      log.With("component", "connectivity"),
	}
}

// Run опрашивает сервер до отмены контекста. Первая проверка выполняется сразу
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Check одна проверка; возвращает текущее состояние
func (p *Probe) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Health(ctx)
	online := err == nil

	if p.set(online) {
		if online {
			p.log.Info("Сервер доступен")
		} else {
			p.log.Warn("Сервер недоступен", "error", err)
		}
	}

	return online
}
