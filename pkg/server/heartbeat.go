package server

import (
	"context"
	"log/slog"
	"time"
)

// DefaultHeartbeatInterval is the probe period.
const DefaultHeartbeatInterval = 30 * time.Second

// Heartbeat probes every tracked connection on a fixed period. A connection
// that has not acknowledged the previous probe by the next tick is evicted.
type Heartbeat struct {
	hub      *Hub
	interval time.Duration
}

// NewHeartbeat creates a monitor for h.
func NewHeartbeat(h *Hub, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{hub: h, interval: interval}
}

// Run ticks until ctx is cancelled.
func (hb *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(hb.interval)
	defer ticker.Stop()
	slog.Debug("heartbeat started", "interval", hb.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Debug("heartbeat stopped")
			return nil
		case <-ticker.C:
			hb.Tick()
		}
	}
}

// Tick runs one probe round: sweep closed transports, evict connections
// that missed the last probe, then ping the rest.
func (hb *Heartbeat) Tick() {
	h := hb.hub
	h.cleanupDeadConnections()

	evicted, probes := h.registry.probe()
	for _, ev := range evicted {
		_ = ev.conn.Close()
		h.metrics.Evictions.Add(1)
		h.metrics.ActiveConnections.Add(-1)
		h.metrics.TotalDisconnects.Add(1)
		if ev.session != nil {
			slog.Info("user disconnected due to heartbeat timeout", "identity", ev.session.Identity)
		} else {
			slog.Debug("evicted unbound connection", "conn", ev.conn.ID())
		}
	}

	for _, c := range probes {
		if err := c.Ping(); err != nil {
			slog.Debug("ping failed", "conn", c.ID(), "err", err)
		}
	}
}
