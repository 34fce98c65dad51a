package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"talk-hub/contract"
	apperrors "talk-hub/errors"
)

// Supervisor runs each registered worker in its own goroutine, recovers
// panics, and restarts crashed workers after a fixed interval. Canceling
// the parent context shuts everything down; Run returns once every
// goroutine has finished.
type Supervisor struct {
	Cancel          context.CancelFunc // cancels the supervised context
	wg              *sync.WaitGroup
	log             *slog.Logger
	restartInterval time.Duration
	workers         []contract.Worker
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

// Run derives a supervised context from the parent and blocks until every
// worker goroutine has finished. A parent cancellation propagates down;
// Stop only cancels the supervised children.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start launches one worker in a supervised goroutine. A panic in the
// worker's Run is recovered and turned into a restart; the supervisor
// itself keeps running whatever a single worker does.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			// The recover stays inside this closure so a crash only
			// restarts the worker, never the supervision loop.
			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = apperrors.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				// A clean exit is final, no restart
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				// Shutdown wins over the pending restart
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

// Stop cancels the supervised context; workers blocked on ctx.Done wind
// down and Run returns once they all have.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
