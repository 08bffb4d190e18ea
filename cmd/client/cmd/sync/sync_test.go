package sync

import (
	"context"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePauser struct {
	paused atomic.Bool
}

func (p *fakePauser) Pause()  { p.paused.Store(true) }
func (p *fakePauser) Resume() { p.paused.Store(false) }

func TestPauseOnSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal)
	p := &fakePauser{}

	done := make(chan struct{})
	go func() {
		pauseOnSignal(ctx, p, sigs)
		close(done)
	}()

	sigs <- syscall.SIGTSTP
	require.Eventually(t, p.paused.Load, time.Second, 5*time.Millisecond)

	sigs <- syscall.SIGCONT
	require.Eventually(t, func() bool { return !p.paused.Load() }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("обработчик сигналов не завершился после отмены контекста")
	}
	assert.False(t, p.paused.Load())
}
