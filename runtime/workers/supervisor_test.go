package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type flakyWorker struct {
	runs *atomic.Int32
}

// Run panics on the first execution and terminates cleanly on the second.
func (w flakyWorker) Run(ctx context.Context) error {
	if w.runs.Add(1) == 1 {
		panic("first run always explodes")
	}
	return nil
}

func TestSupervisor_RestartsAfterPanic(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	supervisor := NewSupervisor(log, 10*time.Millisecond)

	var runs atomic.Int32
	supervisor.Add(flakyWorker{runs: &runs})

	done := make(chan struct{})
	go func() {
		defer close(done)
		supervisor.Run(context.Background())
	}()

	// The worker panicked once, got restarted, then finished cleanly
	select {
	case <-done:
		req.Equal(int32(2), runs.Load())
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: supervisor never finished")
	}
}

type blockingWorker struct{}

func (w blockingWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSupervisor_StopCancelsWorkers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)
	supervisor := NewSupervisor(log, 10*time.Millisecond)
	supervisor.Add(blockingWorker{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		supervisor.Run(context.Background())
	}()

	// Give the worker time to start blocking on the context
	time.Sleep(50 * time.Millisecond)
	supervisor.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: supervisor did not stop its workers")
	}
}
