package server

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/soarclient/soarsocket/pkg/model"
	"github.com/soarclient/soarsocket/pkg/protocol"
)

// sendTo queues one encoded frame to c. Failures are logged and counted.
func (h *Hub) sendTo(c Conn, frame []byte) bool {
	if err := c.Send(frame); err != nil {
		h.metrics.SendFailures.Add(1)
		slog.Warn("send failed", "conn", c.ID(), "remote", c.RemoteAddr(), "err", err)
		return false
	}
	h.metrics.FramesSent.Add(1)
	return true
}

// sendFrames encodes and queues frames to c in order.
func (h *Hub) sendFrames(c Conn, frames ...any) {
	for _, f := range frames {
		data, err := protocol.Encode(f)
		if err != nil {
			slog.Error("encode frame", "err", err)
			return
		}
		h.sendTo(c, data)
	}
}

// broadcast queues frame to every open connection exactly once and returns
// how many accepted it. A failed send never stops the loop.
func (h *Hub) broadcast(frame any) int {
	data, err := protocol.Encode(frame)
	if err != nil {
		slog.Error("encode broadcast", "err", err)
		return 0
	}
	h.metrics.Broadcasts.Add(1)

	recipients := lo.UniqBy(h.registry.Conns(), func(c Conn) string { return c.ID() })
	delivered := 0
	for _, c := range recipients {
		if !c.IsOpen() {
			continue
		}
		if h.sendTo(c, data) {
			delivered++
		}
	}
	return delivered
}

// DirectorySnapshot lists every stored record ordered by identity. Records
// without a name show as "Unknown"; records without a role show as Premium.
func (h *Hub) DirectorySnapshot() []protocol.DirectoryEntry {
	records := lo.Values(h.store.All())
	slices.SortFunc(records, func(a, b model.UserRecord) int {
		return strings.Compare(a.Identity, b.Identity)
	})
	return lo.Map(records, func(rec model.UserRecord, _ int) protocol.DirectoryEntry {
		return protocol.DirectoryEntry{
			DisplayName: rec.NameOrUnknown(),
			Identity:    rec.Identity,
			Role:        rec.Role.Or(model.RolePremium).String(),
		}
	})
}

// BroadcastDirectory sends the directory snapshot to every open connection.
func (h *Hub) BroadcastDirectory() int {
	return h.broadcast(protocol.NewUserDirectory(h.DirectorySnapshot()))
}

// BroadcastServerMessage sends a notice to every open connection, bound or not.
func (h *Hub) BroadcastServerMessage(text string) int {
	n := h.broadcast(protocol.NewServerMessage(text))
	slog.Info("broadcast message", "message", text, "recipients", n)
	return n
}

// notifyRole sends the role update pair to the given connections.
func (h *Hub) notifyRole(conns []Conn, role model.Role) {
	for _, c := range conns {
		h.sendFrames(c,
			protocol.NewRoleUpdate(role),
			protocol.NewServerMessage("Your role has been updated to "+role.String()+"."),
		)
	}
}
