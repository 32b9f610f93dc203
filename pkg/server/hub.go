package server

import (
	"errors"
	"log/slog"

	"github.com/soarclient/soarsocket/pkg/model"
	"github.com/soarclient/soarsocket/pkg/protocol"
	"github.com/soarclient/soarsocket/pkg/store"
)

// WelcomeMessage is sent to every connection right after it binds.
const WelcomeMessage = "Welcome to Soar Socket!"

// DefaultShopURL prefixes the checkout links handed out by GrantPremium.
const DefaultShopURL = "https://shop.soarclient.com/premium/"

// HubOptions configures a Hub.
type HubOptions struct {
	ShopURL string        // checkout link prefix (DefaultShopURL when empty)
	NewID   func() string // link id generator (uuid.NewString when nil)
	Metrics *Metrics      // optional; a private instance is created when nil
}

// Hub is the connection core. The transport calls its lifecycle hooks
// (OnOpen, OnMessage, OnClose, OnPong); the HTTP layer and the console call
// its mutation entry points.
type Hub struct {
	registry *Registry
	store    *store.RoleStore
	metrics  *Metrics
	roles    *roleService
}

// NewHub wires a registry to the role store.
func NewHub(st *store.RoleStore, opts HubOptions) *Hub {
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	h := &Hub{
		store:   st,
		metrics: opts.Metrics,
	}
	h.registry = NewRegistry(st.RoleOf)
	h.roles = newRoleService(opts.ShopURL, opts.NewID)
	return h
}

// Registry exposes the connection registry.
func (h *Hub) Registry() *Registry { return h.registry }

// Store exposes the role store.
func (h *Hub) Store() *store.RoleStore { return h.store }

// Metrics returns the hub metrics.
func (h *Hub) Metrics() *Metrics { return h.metrics }

// OnOpen registers c as unbound and asks it to identify itself.
func (h *Hub) OnOpen(c Conn) {
	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	h.registry.Track(c)
	slog.Debug("new websocket connection", "conn", c.ID(), "remote", c.RemoteAddr())

	frame, err := protocol.Encode(protocol.NewRequestIdentity())
	if err != nil {
		slog.Error("encode identity request", "err", err)
		return
	}
	h.sendTo(c, frame)
}

// OnMessage handles one inbound frame. Bad frames are logged and dropped;
// they never close the connection.
func (h *Hub) OnMessage(c Conn, data []byte) {
	msg, err := protocol.Decode(data)
	switch {
	case errors.Is(err, protocol.ErrUnknownType):
		slog.Debug("ignoring frame", "conn", c.ID(), "err", err)
		return
	case err != nil:
		h.metrics.MalformedFrame.Add(1)
		slog.Warn("malformed frame", "conn", c.ID(), "remote", c.RemoteAddr(), "err", err)
		return
	}

	switch m := msg.(type) {
	case protocol.IdentityAnnouncement:
		h.bind(c, m)
	default:
		slog.Debug("unhandled frame", "conn", c.ID(), "type", msg.FrameType())
	}
}

func (h *Hub) bind(c Conn, a protocol.IdentityAnnouncement) {
	sess, displaced, err := h.registry.Bind(c, a.Identity, a.DisplayName)
	switch {
	case errors.Is(err, ErrAlreadyBound):
		slog.Debug("ignoring announcement on bound connection", "conn", c.ID(), "identity", sess.Identity)
		return
	case err != nil:
		slog.Debug("announcement on closed connection", "conn", c.ID(), "err", err)
		return
	}
	h.metrics.Binds.Add(1)
	if n := int64(len(displaced)); n > 0 {
		h.metrics.Takeovers.Add(n)
		h.metrics.ActiveConnections.Add(-n)
		h.metrics.TotalDisconnects.Add(n)
	}

	h.sendFrames(c, protocol.NewRoleUpdate(sess.Role), protocol.NewServerMessage(WelcomeMessage))
	h.BroadcastDirectory()
	slog.Info("user connected", "identity", sess.Identity, "role", sess.Role, "remote", sess.RemoteAddr)
}

// OnClose removes c from the registry and sweeps any other connections whose
// transport already closed.
func (h *Hub) OnClose(c Conn) {
	sess, found := h.registry.Forget(c)
	if found {
		h.metrics.ActiveConnections.Add(-1)
		h.metrics.TotalDisconnects.Add(1)
	}
	if sess != nil {
		slog.Info("user disconnected", "identity", sess.Identity, "remote", sess.RemoteAddr)
	}
	h.cleanupDeadConnections()
}

// OnPong records a heartbeat acknowledgement.
func (h *Hub) OnPong(c Conn) {
	h.registry.MarkAlive(c)
}

func (h *Hub) cleanupDeadConnections() {
	removed, dropped := h.registry.SweepClosed()
	if removed == 0 {
		return
	}
	h.metrics.ActiveConnections.Add(-int64(removed))
	h.metrics.TotalDisconnects.Add(int64(removed))
	for _, sess := range dropped {
		h.metrics.DeadCleanups.Add(1)
		slog.Info("cleaned up dead connection", "identity", sess.Identity)
	}
}

// Sessions returns every bound session ordered by identity.
func (h *Hub) Sessions() []model.Session {
	return h.registry.AllSessions()
}

// CloseAll closes every tracked connection. Used on shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.registry.Conns() {
		_ = c.Close()
	}
}
