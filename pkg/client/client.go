// Package client implements a soarsocket websocket client.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/soarclient/soarsocket/pkg/protocol"
	"github.com/soarclient/soarsocket/pkg/version"
)

// Client holds one websocket connection. It answers the server's identity
// request automatically and delivers every decoded frame on Events.
type Client struct {
	ws       *websocket.Conn
	identity string
	name     string

	writeMu sync.Mutex
	events  chan *protocol.Envelope
	done    chan struct{}
	once    sync.Once
}

// Dial connects to url (ws:// or wss://) and starts receiving.
func Dial(ctx context.Context, url, identity, displayName string) (*Client, error) {
	header := http.Header{"User-Agent": []string{version.UserAgent()}}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	c := &Client{
		ws:       ws,
		identity: identity,
		name:     displayName,
		events:   make(chan *protocol.Envelope, 32),
		done:     make(chan struct{}),
	}
	go c.receive()
	return c, nil
}

// Events is closed when the connection ends.
func (c *Client) Events() <-chan *protocol.Envelope {
	return c.events
}

// Announce sends the identity announcement.
func (c *Client) Announce() error {
	data, err := protocol.Encode(protocol.NewIdentityAnnouncement(c.identity, c.name))
	if err != nil {
		return err
	}
	return c.WriteRaw(data)
}

// WriteRaw sends a text frame as-is.
func (c *Client) WriteRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("client: write: %w", err)
	}
	return nil
}

func (c *Client) receive() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !isClosed(c.done) {
				slog.Debug("client connection lost", "err", err)
			}
			return
		}
		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			slog.Warn("client: bad frame", "err", err)
			continue
		}
		if env.Type == protocol.TypeRequestIdentity {
			if err := c.Announce(); err != nil {
				slog.Error("client: announce", "err", err)
				return
			}
		}
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
