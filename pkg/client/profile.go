package client

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Profile is the identity the command-line client announces, persisted as
// YAML so reconnects reuse the same identity.
type Profile struct {
	Identity    string `yaml:"identity"`
	DisplayName string `yaml:"display_name"`
	Server      string `yaml:"server"`
}

// DefaultProfile returns a profile with a fresh identity.
func DefaultProfile() *Profile {
	return &Profile{
		Identity:    uuid.NewString(),
		DisplayName: "Player",
		Server:      "ws://localhost:8080/websocket",
	}
}

// DefaultProfilePath returns profile.yaml next to the binary.
func DefaultProfilePath() string {
	exe, err := os.Executable()
	if err != nil {
		return "profile.yaml"
	}
	return filepath.Join(filepath.Dir(exe), "profile.yaml")
}

// LoadProfile reads path, creating it with a fresh identity when absent.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path from CLI flag
	if errors.Is(err, fs.ErrNotExist) {
		p := DefaultProfile()
		if err := p.Save(path); err != nil {
			return nil, err
		}
		slog.Info("created client profile", "path", path, "identity", p.Identity)
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("client: read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("client: parse profile: %w", err)
	}
	defaults := DefaultProfile()
	if p.DisplayName == "" {
		p.DisplayName = defaults.DisplayName
	}
	if p.Server == "" {
		p.Server = defaults.Server
	}
	if p.Identity == "" {
		p.Identity = defaults.Identity
		if err := p.Save(path); err != nil {
			return nil, err
		}
		slog.Info("assigned client identity", "path", path, "identity", p.Identity)
	}
	return &p, nil
}

// Save writes the profile to path.
func (p *Profile) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("client: marshal profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("client: write profile: %w", err)
	}
	return nil
}
