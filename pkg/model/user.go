// Package model defines the core domain types for soarsocket.
package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxIdentityLength    = 128
	MaxDisplayNameLength = 64

	// UnknownName is shown for stored records that never received a display name.
	UnknownName = "Unknown"
)

var ErrIdentityEmpty = errors.New("identity must not be empty")
var ErrIdentityTooLong = fmt.Errorf("identity must not exceed %d characters", MaxIdentityLength)

// UserRecord is the durable role entry for one identity.
type UserRecord struct {
	Identity    string `json:"identity" yaml:"identity"`
	DisplayName string `json:"name,omitempty" yaml:"name,omitempty"`
	Role        Role   `json:"role,omitempty" yaml:"role,omitempty"`
}

// NameOrUnknown returns the display name, or UnknownName when none was stored.
func (u UserRecord) NameOrUnknown() string {
	if u.DisplayName == "" {
		return UnknownName
	}
	return u.DisplayName
}

// IsSpecial reports whether the stored role is set and above Normal.
func (u UserRecord) IsSpecial() bool {
	return u.Role != RoleUnset && u.Role != RoleNormal
}

// ValidateIdentity checks that an externally issued identity is usable as a key.
// Identities are opaque; only emptiness and length are enforced.
func ValidateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return ErrIdentityEmpty
	}
	if len(identity) > MaxIdentityLength {
		return ErrIdentityTooLong
	}
	return nil
}

// SanitizeDisplayName strips control characters and truncates the name.
func SanitizeDisplayName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		name = string([]rune(name)[:MaxDisplayNameLength])
	}
	return name
}
