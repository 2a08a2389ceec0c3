package workers

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// ProcessStats is the periodic self-process snapshot exposed to the
// debug server and the logs.
type ProcessStats struct {
	CPUPercent float64   `json:"cpu_percent"`
	RSSBytes   uint64    `json:"rss_bytes"`
	Goroutines int       `json:"goroutines"`
	Sessions   int       `json:"sessions"`
	At         time.Time `json:"at"`
}

type sessionCounter interface {
	SessionCount() int
}

// TelemetryWorker samples CPU, memory, and live-session metrics on an
// interval. Purely observational: it never touches the chat pipeline.
type TelemetryWorker struct {
	mu       sync.RWMutex
	log      *slog.Logger
	sessions sessionCounter
	interval time.Duration
	latest   ProcessStats
}

func NewTelemetryWorker(log *slog.Logger, sessions sessionCounter, interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{log: log, sessions: sessions, interval: interval}
}

// GetLatest returns the most recent snapshot.
func (w *TelemetryWorker) GetLatest() ProcessStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.latest
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			stats.Goroutines = runtime.NumGoroutine()
			if w.sessions != nil {
				stats.Sessions = w.sessions.SessionCount()
			}
			stats.At = time.Now().UTC()

			w.mu.Lock()
			w.latest = stats
			w.mu.Unlock()

			w.log.Debug("Telemetry",
				"cpu_percent", stats.CPUPercent,
				"rss_bytes", stats.RSSBytes,
				"goroutines", stats.Goroutines,
				"sessions", stats.Sessions)
		}
	}
}

// selfStats retrieves memory and CPU metrics for the given process.
func selfStats(p *process.Process) (ProcessStats, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}

	return ProcessStats{CPUPercent: cpuPercent, RSSBytes: memInfo.RSS}, nil
}
