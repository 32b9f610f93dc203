package server

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soarclient/soarsocket/pkg/protocol"
)

const (
	DefaultSendQueue    = 64
	DefaultWriteTimeout = 10 * time.Second
)

// wsConn adapts a gorilla websocket to Conn. Frames and pings are queued and
// written by writePump, so neither Send nor Ping blocks on the network.
type wsConn struct {
	id           string
	ws           *websocket.Conn
	remote       string
	send         chan []byte
	ping         chan struct{}
	done         chan struct{}
	open         atomic.Bool
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newWSConn(ws *websocket.Conn, remote string, queue int, writeTimeout time.Duration) *wsConn {
	c := &wsConn{
		id:           uuid.NewString(),
		ws:           ws,
		remote:       remote,
		send:         make(chan []byte, queue),
		ping:         make(chan struct{}, 1),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	c.open.Store(true)
	return c
}

func (c *wsConn) ID() string         { return c.id }
func (c *wsConn) RemoteAddr() string { return c.remote }
func (c *wsConn) IsOpen() bool       { return c.open.Load() }

func (c *wsConn) Send(frame []byte) error {
	if !c.open.Load() {
		return ErrConnClosed
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendQueueFull
	}
}

// Ping asks writePump to send a ping. A ping still pending is not duplicated.
func (c *wsConn) Ping() error {
	if !c.open.Load() {
		return ErrConnClosed
	}
	select {
	case c.ping <- struct{}{}:
	default:
	}
	return nil
}

// Close tears the socket down without a close handshake.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.open.Store(false)
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case <-c.ping:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout)); err != nil {
				slog.Debug("websocket ping failed", "conn", c.id, "err", err)
				_ = c.Close()
				return
			}
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				slog.Debug("websocket write failed", "conn", c.id, "err", err)
				_ = c.Close()
				return
			}
		}
	}
}

// WebSocketHandler upgrades HTTP requests and feeds the connection into the hub.
type WebSocketHandler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	sendQueue    int
	writeTimeout time.Duration
}

// NewWebSocketHandler creates a handler. Zero values select the defaults.
func NewWebSocketHandler(h *Hub, sendQueue int, writeTimeout time.Duration) *WebSocketHandler {
	if sendQueue <= 0 {
		sendQueue = DefaultSendQueue
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &WebSocketHandler{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Game clients connect without a browser Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendQueue:    sendQueue,
		writeTimeout: writeTimeout,
	}
}

func (wh *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := wh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := newWSConn(ws, r.RemoteAddr, wh.sendQueue, wh.writeTimeout)
	ws.SetReadLimit(protocol.MaxFrameSize)
	ws.SetPongHandler(func(string) error {
		wh.hub.OnPong(c)
		return nil
	})

	wh.hub.OnOpen(c)
	go c.writePump()
	wh.readLoop(c)
}

func (wh *WebSocketHandler) readLoop(c *wsConn) {
	defer func() {
		_ = c.Close()
		wh.hub.OnClose(c)
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) && c.IsOpen() {
				slog.Warn("websocket error", "conn", c.id, "remote", c.remote, "err", err)
			}
			return
		}
		wh.hub.OnMessage(c, data)
	}
}
