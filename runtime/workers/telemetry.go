package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"chat-room/contract"
	"chat-room/observability"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*Telemetry)(nil)

// Telemetry periodically logs process health (RSS, CPU) together with
// the room counters.
type Telemetry struct {
	log      *slog.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewTelemetry(log *slog.Logger, metrics *observability.Metrics, interval time.Duration) *Telemetry {
	return &Telemetry{log: log, metrics: metrics, interval: interval}
}

func (w *Telemetry) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			attrs := []any{}
			if mem, err := proc.MemoryInfo(); err == nil {
				attrs = append(attrs, "rss_mb", mem.RSS/1024/1024)
			}
			if cpu, err := proc.CPUPercent(); err == nil {
				attrs = append(attrs, "cpu_percent", cpu)
			}
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			attrs = append(attrs, "alloc_mb", stats.Alloc/1024/1024, "goroutines", runtime.NumGoroutine())

			for key, value := range w.metrics.Snapshot() {
				attrs = append(attrs, key, value)
			}
			w.log.Info("Telemetry", attrs...)
		}
	}
}
