// Package server implements the soarsocket connection server: the websocket
// hub, role mutations, the HTTP API and the operator console.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/soarclient/soarsocket/pkg/config"
	"github.com/soarclient/soarsocket/pkg/crypto"
	"github.com/soarclient/soarsocket/pkg/datastore"
	"github.com/soarclient/soarsocket/pkg/store"
)

// Dependencies holds external dependencies for the server.
// Server assumes ownership of Store: New closes it when it fails, and
// Serve closes it on shutdown.
type Dependencies struct {
	Store      datastore.Persister
	ConsoleIn  io.Reader // operator commands; nil disables the console
	ConsoleOut io.Writer
}

// Server is the soarsocket server.
type Server struct {
	cfg       config.Config
	store     *store.RoleStore
	hub       *Hub
	heartbeat *Heartbeat
	api       *API
	console   *Console
	metrics   *Metrics
	httpSrv   *http.Server
}

// New loads the role store and wires every component.
func New(ctx context.Context, cfg config.Config, deps Dependencies) (*Server, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("server: missing store dependency")
	}
	st, err := store.Open(ctx, deps.Store)
	if err != nil {
		_ = deps.Store.Close()
		return nil, err
	}

	metrics := NewMetrics()
	hub := NewHub(st, HubOptions{ShopURL: cfg.ShopURL, Metrics: metrics})
	s := &Server{
		cfg:       cfg,
		store:     st,
		hub:       hub,
		heartbeat: NewHeartbeat(hub, cfg.WebSocket.HeartbeatInterval),
		api:       NewAPI(hub, crypto.NewAdminKey(cfg.AdminKey)),
		metrics:   metrics,
	}
	if deps.ConsoleIn != nil {
		out := deps.ConsoleOut
		if out == nil {
			out = io.Discard
		}
		s.console = NewConsole(hub, deps.ConsoleIn, out)
	}
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the full HTTP surface: API, websocket, health and metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.api.Register(mux)
	mux.Handle("GET "+s.cfg.WebSocket.Path, NewWebSocketHandler(s.hub, s.cfg.WebSocket.SendQueue, s.cfg.WebSocket.WriteTimeout))
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub { return s.hub }

// Store returns the role store.
func (s *Server) Store() *store.RoleStore { return s.store }

// Metrics returns the server metrics.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Heartbeat returns the heartbeat monitor.
func (s *Server) Heartbeat() *Heartbeat { return s.heartbeat }
