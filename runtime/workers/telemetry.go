package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"talk-hub/domain/event"
)

// Telemetry periodically logs process health (RSS, CPU) together with live
// session and group counts, and drains the telemetry event channel so the
// fanout worker never blocks on observability.
type Telemetry struct {
	log             *slog.Logger
	counts          func() (sessions, groups int)
	telemetryEvents chan event.DomainEvent
	interval        time.Duration
	delivered       uint64
}

func NewTelemetry(log *slog.Logger, counts func() (int, int),
	telemetryEvents chan event.DomainEvent, interval time.Duration) *Telemetry {
	return &Telemetry{
		log:             log,
		counts:          counts,
		telemetryEvents: telemetryEvents,
		interval:        interval,
	}
}

func (w *Telemetry) Run(ctx context.Context) error {
	w.log.Info("Starting telemetry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.telemetryEvents:
			w.delivered++
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}

			sessions, groups := w.counts()
			w.log.Info("Telemetry",
				"sessions", sessions,
				"groups", groups,
				"messages_fanned_out", w.delivered,
				"ram_bytes", rss,
				"cpu_percent", cpu,
			)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}

	return memInfo.RSS, cpuPercent, nil
}
