package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/soarclient/soarsocket/pkg/model"
	"github.com/soarclient/soarsocket/pkg/store"
)

// UserYAML represents a stored record in YAML export.
type UserYAML struct {
	Identity string `yaml:"identity"`
	Name     string `yaml:"name,omitempty"`
	Role     string `yaml:"role,omitempty"` // empty when the record carries no role
}

// UsersExport is the top-level YAML for user export.
type UsersExport struct {
	Users []UserYAML `yaml:"users"`
}

// ExportUsersYAML exports all stored records as YAML, ordered by identity.
func ExportUsersYAML(st *store.RoleStore) ([]byte, error) {
	all := st.All()
	export := UsersExport{Users: make([]UserYAML, 0, len(all))}
	for _, rec := range all {
		export.Users = append(export.Users, UserYAML{
			Identity: rec.Identity,
			Name:     rec.DisplayName,
			Role:     rec.Role.String(),
		})
	}
	slices.SortFunc(export.Users, func(a, b UserYAML) int {
		return strings.Compare(a.Identity, b.Identity)
	})
	return yaml.Marshal(&export)
}

// LoadUsersFromYAML reads a users YAML file and merges it into the store.
func LoadUsersFromYAML(ctx context.Context, path string, st *store.RoleStore) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return fmt.Errorf("read users file: %w", err)
	}
	return ImportUsersFromYAML(ctx, data, st)
}

// ImportUsersFromYAML parses YAML data and merges every record into the store
// in a single write. Nothing is stored if any entry is invalid.
func ImportUsersFromYAML(ctx context.Context, data []byte, st *store.RoleStore) error {
	var export UsersExport
	if err := yaml.Unmarshal(data, &export); err != nil {
		return fmt.Errorf("parse users file: %w", err)
	}

	recs := make([]model.UserRecord, 0, len(export.Users))
	for i, u := range export.Users {
		if err := model.ValidateIdentity(u.Identity); err != nil {
			return fmt.Errorf("users[%d]: %w", i, err)
		}
		var role model.Role
		if err := role.UnmarshalText([]byte(u.Role)); err != nil {
			return fmt.Errorf("users[%d] %q: %w", i, u.Identity, err)
		}
		recs = append(recs, model.UserRecord{
			Identity:    u.Identity,
			DisplayName: model.SanitizeDisplayName(u.Name),
			Role:        role,
		})
	}

	if err := st.Merge(ctx, recs); err != nil {
		return err
	}
	slog.Info("imported users from YAML", "count", len(recs))
	return nil
}
