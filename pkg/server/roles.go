package server

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/soarclient/soarsocket/pkg/model"
	"github.com/soarclient/soarsocket/pkg/protocol"
)

// Change is a role mutation. With Remove set the stored record is deleted;
// otherwise Role and Name are merged over the stored record (zero values keep
// what is stored).
type Change struct {
	Role   model.Role
	Name   string
	Remove bool
}

// roleService serializes role mutations: store write, then session
// reconciliation, then directory broadcast.
type roleService struct {
	shopURL string
	newID   func() string
	mu      sync.Mutex
}

func newRoleService(shopURL string, newID func() string) *roleService {
	if shopURL == "" {
		shopURL = DefaultShopURL
	}
	if newID == nil {
		newID = uuid.NewString
	}
	return &roleService{shopURL: shopURL, newID: newID}
}

// MutateRole applies c to identity. A store failure is returned and leaves
// sessions and observers untouched.
func (h *Hub) MutateRole(ctx context.Context, identity string, c Change) error {
	if err := model.ValidateIdentity(identity); err != nil {
		return fmt.Errorf("server: mutate role: %w", err)
	}
	if !c.Remove && c.Role != model.RoleUnset && !c.Role.Valid() {
		return fmt.Errorf("server: mutate role: %w", model.ErrInvalidRole)
	}

	h.roles.mu.Lock()
	defer h.roles.mu.Unlock()

	var sessionRole model.Role
	if c.Remove {
		if _, err := h.store.Remove(ctx, identity); err != nil {
			h.metrics.FailedMutations.Add(1)
			return fmt.Errorf("server: remove %q: %w", identity, err)
		}
		sessionRole = model.RoleNormal
	} else {
		name := model.SanitizeDisplayName(c.Name)
		rec, err := h.store.Update(ctx, identity, func(cur model.UserRecord, _ bool) model.UserRecord {
			cur.DisplayName = lo.CoalesceOrEmpty(name, cur.DisplayName, model.UnknownName)
			cur.Role = c.Role.Or(cur.Role).Or(model.RolePremium)
			return cur
		})
		if err != nil {
			h.metrics.FailedMutations.Add(1)
			return fmt.Errorf("server: update %q: %w", identity, err)
		}
		sessionRole = rec.Role
	}
	h.metrics.Mutations.Add(1)

	h.reconcile(identity, sessionRole)
	h.BroadcastDirectory()
	slog.Info("role mutated", "identity", identity, "role", sessionRole, "removed", c.Remove)
	return nil
}

// GrantPremium records a shop checkout for identity: an existing role is
// kept, otherwise Premium is stored. A live session gets the role_update
// without the role-change notice. It returns the checkout link.
func (h *Hub) GrantPremium(ctx context.Context, identity, name string) (string, error) {
	if err := model.ValidateIdentity(identity); err != nil {
		return "", fmt.Errorf("server: grant premium: %w", err)
	}

	h.roles.mu.Lock()
	defer h.roles.mu.Unlock()

	link := h.roles.shopURL + h.roles.newID()
	name = model.SanitizeDisplayName(name)
	rec, err := h.store.Update(ctx, identity, func(cur model.UserRecord, _ bool) model.UserRecord {
		cur.DisplayName = lo.CoalesceOrEmpty(name, cur.DisplayName)
		cur.Role = cur.Role.Or(model.RolePremium)
		return cur
	})
	if err != nil {
		h.metrics.FailedMutations.Add(1)
		return "", fmt.Errorf("server: grant premium %q: %w", identity, err)
	}
	h.metrics.Mutations.Add(1)

	for _, c := range h.registry.ReconcileRole(identity, rec.Role) {
		h.sendFrames(c, protocol.NewRoleUpdate(rec.Role))
	}
	h.BroadcastDirectory()
	slog.Info("premium checkout created", "identity", identity, "role", rec.Role)
	return link, nil
}

func (h *Hub) reconcile(identity string, role model.Role) {
	affected := h.registry.ReconcileRole(identity, role)
	h.notifyRole(affected, role)
}

// IsSpecialRole reports whether identity holds a stored role above Normal.
func (h *Hub) IsSpecialRole(identity string) bool {
	rec, _ := h.store.Get(identity)
	return rec.IsSpecial()
}

// ListSpecialUsers returns every stored record above Normal, ordered by identity.
func (h *Hub) ListSpecialUsers() []model.UserRecord {
	special := lo.Filter(lo.Values(h.store.All()), func(rec model.UserRecord, _ int) bool {
		return rec.IsSpecial()
	})
	slices.SortFunc(special, func(a, b model.UserRecord) int {
		return strings.Compare(a.Identity, b.Identity)
	})
	return special
}
