package server

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/soarclient/soarsocket/pkg/model"
)

// RoleLookup resolves the current role of an identity. It is called with the
// registry lock held and must not call back into the registry.
type RoleLookup func(identity string) model.Role

type entry struct {
	conn    Conn
	alive   bool
	session *model.Session
}

// Registry tracks every open connection and the identity bound to it.
// At most one session exists per identity; all mutations share one mutex.
type Registry struct {
	mu     sync.Mutex
	conns  map[string]*entry // conn ID -> entry
	lookup RoleLookup
	now    func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(lookup RoleLookup) *Registry {
	return &Registry{
		conns:  make(map[string]*entry),
		lookup: lookup,
		now:    time.Now,
	}
}

// Track registers a freshly opened, unbound connection.
func (r *Registry) Track(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c.ID()]; !ok {
		r.conns[c.ID()] = &entry{conn: c, alive: true}
	}
}

// Bind attaches identity to c. Any other connection bound to the same
// identity is removed and forcibly closed (takeover). The displaced
// connections are returned after they have been closed.
func (r *Registry) Bind(c Conn, identity, displayName string) (model.Session, []Conn, error) {
	r.mu.Lock()
	e, ok := r.conns[c.ID()]
	if !ok || !c.IsOpen() {
		r.mu.Unlock()
		return model.Session{}, nil, ErrConnClosed
	}
	if e.session != nil {
		sess := *e.session
		r.mu.Unlock()
		return sess, nil, ErrAlreadyBound
	}

	var displaced []Conn
	for id, other := range r.conns {
		if id == c.ID() || other.session == nil || other.session.Identity != identity {
			continue
		}
		displaced = append(displaced, other.conn)
		delete(r.conns, id)
	}

	sess := &model.Session{
		ConnID:      c.ID(),
		Identity:    identity,
		DisplayName: displayName,
		Role:        r.lookup(identity).Or(model.RoleNormal),
		RemoteAddr:  c.RemoteAddr(),
		BoundAt:     r.now(),
	}
	e.session = sess
	e.alive = true
	result := *sess
	r.mu.Unlock()

	for _, old := range displaced {
		_ = old.Close()
		slog.Info("closed duplicate connection", "identity", identity, "conn", old.ID())
	}
	return result, displaced, nil
}

// Unbind drops the session held by c but keeps the connection tracked.
// It reports whether a session was removed.
func (r *Registry) Unbind(c Conn) (model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[c.ID()]
	if !ok || e.session == nil {
		return model.Session{}, false
	}
	sess := *e.session
	e.session = nil
	return sess, true
}

// Forget removes c entirely. The returned session is the one it held, if any;
// found is false when c was already gone.
func (r *Registry) Forget(c Conn) (sess *model.Session, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[c.ID()]
	if !ok {
		return nil, false
	}
	delete(r.conns, c.ID())
	if e.session == nil {
		return nil, true
	}
	copied := *e.session
	return &copied, true
}

// SessionsByIdentity returns every session bound to identity (normally 0 or 1).
func (r *Registry) SessionsByIdentity(identity string) []model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Session
	for _, e := range r.conns {
		if e.session != nil && e.session.Identity == identity {
			out = append(out, *e.session)
		}
	}
	return out
}

// AllSessions returns a snapshot of every bound session ordered by identity.
func (r *Registry) AllSessions() []model.Session {
	r.mu.Lock()
	out := make([]model.Session, 0, len(r.conns))
	for _, e := range r.conns {
		if e.session != nil {
			out = append(out, *e.session)
		}
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b model.Session) int {
		return strings.Compare(a.Identity, b.Identity)
	})
	return out
}

// Conns returns every tracked connection that still reports open, bound or not.
func (r *Registry) Conns() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(r.conns))
	for _, e := range r.conns {
		if e.conn.IsOpen() {
			out = append(out, e.conn)
		}
	}
	return lo.UniqBy(out, func(c Conn) string { return c.ID() })
}

// ReconcileRole sets the role of every live session for identity and returns
// the affected connections. The connections themselves are not touched.
func (r *Registry) ReconcileRole(identity string, role model.Role) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected []Conn
	for _, e := range r.conns {
		if e.session != nil && e.session.Identity == identity {
			e.session.Role = role
			affected = append(affected, e.conn)
		}
	}
	return affected
}

// MarkAlive records a heartbeat acknowledgement for c.
func (r *Registry) MarkAlive(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[c.ID()]; ok {
		e.alive = true
	}
}

// SweepClosed removes every connection whose transport is no longer open.
// It returns how many were removed and the sessions dropped with them.
func (r *Registry) SweepClosed() (removed int, dropped []model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.conns {
		if e.conn.IsOpen() {
			continue
		}
		delete(r.conns, id)
		removed++
		if e.session != nil {
			dropped = append(dropped, *e.session)
		}
	}
	return removed, dropped
}

// eviction is a connection removed by a heartbeat tick.
type eviction struct {
	conn    Conn
	session *model.Session
}

// probe runs the bookkeeping half of a heartbeat tick: connections that did
// not acknowledge the previous probe are removed and returned as evicted;
// all others are marked not-alive and returned for probing.
func (r *Registry) probe() (evicted []eviction, probes []Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.conns {
		if !e.alive {
			delete(r.conns, id)
			evicted = append(evicted, eviction{conn: e.conn, session: e.session})
			continue
		}
		e.alive = false
		probes = append(probes, e.conn)
	}
	return evicted, probes
}

// Len returns the number of tracked connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// BoundCount returns the number of bound sessions.
func (r *Registry) BoundCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.CountBy(lo.Values(r.conns), func(e *entry) bool { return e.session != nil })
}
