package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soarclient/soarsocket/pkg/datastore"
)

const shutdownTimeout = 5 * time.Second

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln together with the heartbeat, the periodic
// metrics log and the console. It returns once every part has stopped; the
// role store is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer func() {
		if err := s.store.Close(); err != nil {
			slog.Error("close store", "err", err)
		}
	}()

	slog.Info("soarsocket server running",
		"addr", ln.Addr().String(),
		"websocket", s.cfg.WebSocket.Path,
		"store", datastore.Scheme(s.cfg.UsersDB),
		"records", s.store.Len(),
		"admin", s.cfg.AdminKey != "",
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.heartbeat.Run(gctx)
	})

	if s.cfg.MetricsLogInterval > 0 {
		g.Go(func() error {
			return s.metrics.RunPeriodicLog(gctx, s.cfg.MetricsLogInterval)
		})
	}

	// Blocking stdin reads cannot be interrupted, so the console stays out of the group.
	if s.console != nil {
		go func() {
			if err := s.console.Run(gctx); err != nil {
				slog.Warn("console stopped", "err", err)
			}
		}()
	}

	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})

	return g.Wait()
}

// shutdown stops accepting requests and closes every websocket.
func (s *Server) shutdown() {
	slog.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	s.hub.CloseAll()
}
