package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Metrics tracks server runtime statistics.
// All counters use atomic operations for lock-free concurrent access.
type Metrics struct {
	startTime time.Time

	// Connection counters
	TotalConnections  atomic.Int64 // lifetime websocket connections accepted
	ActiveConnections atomic.Int64 // currently open websocket connections
	TotalDisconnects  atomic.Int64 // connections closed for any reason

	// Session counters
	Binds          atomic.Int64 // identity announcements accepted
	Takeovers      atomic.Int64 // older connections closed by a newer bind
	Evictions      atomic.Int64 // connections dropped by the heartbeat
	DeadCleanups   atomic.Int64 // sessions removed because the transport was already closed
	MalformedFrame atomic.Int64 // inbound frames that failed to decode

	// Fan-out counters
	FramesSent   atomic.Int64 // frames queued to connections
	SendFailures atomic.Int64 // frames that could not be queued
	Broadcasts   atomic.Int64 // broadcast calls (directory + server messages)

	// Role counters
	Mutations       atomic.Int64 // committed role changes and removals
	FailedMutations atomic.Int64 // mutations rejected by the store
}

// NewMetrics creates a new Metrics instance with the start time set to now.
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

// MetricsSnapshot is a point-in-time view of all metrics as a serializable struct.
type MetricsSnapshot struct {
	Uptime        string `json:"uptime"`
	UptimeSeconds int64  `json:"uptime_seconds"`

	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	TotalDisconnects  int64 `json:"total_disconnects"`

	Binds          int64 `json:"binds"`
	Takeovers      int64 `json:"takeovers"`
	Evictions      int64 `json:"evictions"`
	DeadCleanups   int64 `json:"dead_cleanups"`
	MalformedFrame int64 `json:"malformed_frames"`

	FramesSent   int64 `json:"frames_sent"`
	SendFailures int64 `json:"send_failures"`
	Broadcasts   int64 `json:"broadcasts"`

	Mutations       int64 `json:"mutations"`
	FailedMutations int64 `json:"failed_mutations"`
}

// Snapshot returns a read-consistent snapshot of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	uptime := time.Since(m.startTime)
	return MetricsSnapshot{
		Uptime:            uptime.Truncate(time.Second).String(),
		UptimeSeconds:     int64(uptime.Seconds()),
		ActiveConnections: m.ActiveConnections.Load(),
		TotalConnections:  m.TotalConnections.Load(),
		TotalDisconnects:  m.TotalDisconnects.Load(),
		Binds:             m.Binds.Load(),
		Takeovers:         m.Takeovers.Load(),
		Evictions:         m.Evictions.Load(),
		DeadCleanups:      m.DeadCleanups.Load(),
		MalformedFrame:    m.MalformedFrame.Load(),
		FramesSent:        m.FramesSent.Load(),
		SendFailures:      m.SendFailures.Load(),
		Broadcasts:        m.Broadcasts.Load(),
		Mutations:         m.Mutations.Load(),
		FailedMutations:   m.FailedMutations.Load(),
	}
}

// JSON returns the metrics snapshot as a JSON string.
func (m *Metrics) JSON() string {
	data, err := json.MarshalIndent(m.Snapshot(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// LogSummary writes a periodic metrics summary to the logger.
func (m *Metrics) LogSummary() {
	s := m.Snapshot()
	slog.Info("metrics",
		"uptime", s.Uptime,
		"connections", s.ActiveConnections,
		"total_connections", s.TotalConnections,
		"binds", s.Binds,
		"evictions", s.Evictions,
		"frames_sent", s.FramesSent,
		"send_failures", s.SendFailures,
		"mutations", s.Mutations,
	)
}

// RunPeriodicLog logs a summary every interval until ctx is cancelled.
func (m *Metrics) RunPeriodicLog(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.LogSummary()
		}
	}
}
