package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"edu-relay/domain/event"

	"github.com/shirou/gopsutil/process"
)

// HealthMonitoringWorker drains the lossy telemetry channel and periodically
// logs delivery counters together with the relay's own cpu/ram usage.
// Diagnostics only: dropping telemetry never affects message delivery.
type HealthMonitoringWorker struct {
	log             *slog.Logger
	telemetryEvents chan event.DomainEvent
	metricInterval  time.Duration
	broadcasts      uint64
	replays         uint64
}

func NewHealthMonitoringWorker(log *slog.Logger,
	telemetryEvents chan event.DomainEvent,
	metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:             log,
		telemetryEvents: telemetryEvents,
		metricInterval:  metricInterval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case evt := <-w.telemetryEvents:
			switch evt.(type) {
			case event.MessageBroadcast:
				w.broadcasts++
			case event.HistoryLoaded:
				w.replays++
			}
		case <-ticker.C:
			w.report(proc)
		}
	}
}

func (w *HealthMonitoringWorker) report(proc *process.Process) {
	cpu, err := proc.CPUPercent()
	if err != nil {
		w.log.Error("Error while finding process cpu usage", "err", err)
		return
	}
	ram, err := proc.MemoryPercent()
	if err != nil {
		w.log.Error("Error while finding process ram usage", "err", err)
		return
	}
	w.log.Info("Relay health",
		"cpu", cpu,
		"ram", ram,
		"broadcasts", w.broadcasts,
		"replays", w.replays)
}
