package server

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/soarclient/soarsocket/pkg/datastore"
	"github.com/soarclient/soarsocket/pkg/protocol"
	"github.com/soarclient/soarsocket/pkg/store"
)

// fakeConn records everything the hub does to a connection.
type fakeConn struct {
	id     string
	remote string

	mu      sync.Mutex
	frames  [][]byte
	pings   int
	closes  int
	closed  bool
	sendErr error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, remote: "10.0.0.1:" + id}
}

func (c *fakeConn) ID() string         { return c.id }
func (c *fakeConn) RemoteAddr() string { return c.remote }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	c.closed = true
	return nil
}

func (c *fakeConn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) failSends(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// envelopes decodes every frame received so far.
func (c *fakeConn) envelopes(t *testing.T) []*protocol.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*protocol.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := protocol.DecodeEnvelope(f)
		if err != nil {
			t.Fatalf("decode sent frame %q: %v", f, err)
		}
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, env := range c.envelopes(t) {
		out = append(out, env.Type)
	}
	return out
}

func (c *fakeConn) last(t *testing.T, frameType string) *protocol.Envelope {
	t.Helper()
	envs := c.envelopes(t)
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == frameType {
			return envs[i]
		}
	}
	t.Fatalf("conn %s never received %s (got %v)", c.id, frameType, c.types(t))
	return nil
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func newTestHub(t *testing.T, seed datastore.Records) (*Hub, *datastore.Memory) {
	t.Helper()
	p := datastore.NewMemory(seed)
	st, err := store.Open(context.Background(), p)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	h := NewHub(st, HubOptions{
		ShopURL: "https://shop.test/premium/",
		NewID:   func() string { return "link-1" },
	})
	return h, p
}

// gatedPersister blocks every Save until release is closed.
type gatedPersister struct {
	*datastore.Memory
	entered chan struct{}
	release chan struct{}
}

func newGatedPersister(seed datastore.Records) *gatedPersister {
	return &gatedPersister{
		Memory:  datastore.NewMemory(seed),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (g *gatedPersister) Save(ctx context.Context, records datastore.Records) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.Memory.Save(ctx, records)
}

// open runs OnOpen for a new fake connection.
func open(h *Hub, id string) *fakeConn {
	c := newFakeConn(id)
	h.OnOpen(c)
	return c
}

// announce opens a connection and binds it.
func announce(t *testing.T, h *Hub, id, identity, name string) *fakeConn {
	t.Helper()
	c := open(h, id)
	h.OnMessage(c, []byte(`{"type":"identity_announcement","identity":"`+identity+`","displayName":"`+name+`"}`))
	return c
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *syncBuffer {
	t.Helper()
	buf := &syncBuffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}
