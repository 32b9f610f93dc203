package server

import (
	"fmt"
	"net/http"
	"time"
)

// handleMetrics writes all metrics in Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	m := s.metrics
	uptime := time.Since(m.startTime).Seconds()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Write errors to http.ResponseWriter are non-actionable; suppress errcheck.
	write := func(name, help, mtype string, value int64) {
		_, _ = fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		_, _ = fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		_, _ = fmt.Fprintf(w, "%s %d\n", name, value)
	}

	_, _ = fmt.Fprintf(w, "# HELP soarsocket_uptime_seconds Server uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE soarsocket_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "soarsocket_uptime_seconds %f\n", uptime)

	write("soarsocket_connections_active", "Currently open websocket connections.", "gauge",
		m.ActiveConnections.Load())
	write("soarsocket_connections_total", "Lifetime websocket connections accepted.", "counter",
		m.TotalConnections.Load())
	write("soarsocket_disconnects_total", "Connections closed for any reason.", "counter",
		m.TotalDisconnects.Load())
	write("soarsocket_sessions_bound", "Connections currently bound to an identity.", "gauge",
		int64(s.hub.Registry().BoundCount()))

	write("soarsocket_binds_total", "Identity announcements accepted.", "counter",
		m.Binds.Load())
	write("soarsocket_takeovers_total", "Connections closed because the identity bound elsewhere.", "counter",
		m.Takeovers.Load())
	write("soarsocket_heartbeat_evictions_total", "Connections evicted by the heartbeat.", "counter",
		m.Evictions.Load())
	write("soarsocket_dead_cleanups_total", "Sessions removed after their transport closed.", "counter",
		m.DeadCleanups.Load())
	write("soarsocket_malformed_frames_total", "Inbound frames that failed to decode.", "counter",
		m.MalformedFrame.Load())

	write("soarsocket_frames_sent_total", "Frames queued to connections.", "counter",
		m.FramesSent.Load())
	write("soarsocket_send_failures_total", "Frames that could not be queued.", "counter",
		m.SendFailures.Load())
	write("soarsocket_broadcasts_total", "Broadcast calls.", "counter",
		m.Broadcasts.Load())

	write("soarsocket_role_mutations_total", "Committed role changes and removals.", "counter",
		m.Mutations.Load())
	write("soarsocket_role_mutations_failed_total", "Role mutations rejected by the store.", "counter",
		m.FailedMutations.Load())
	write("soarsocket_stored_records", "Records in the role store.", "gauge",
		int64(s.store.Len()))
}
