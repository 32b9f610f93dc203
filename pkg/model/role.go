package model

import (
	"errors"
	"strings"
)

// Role is the authorization tier attached to an identity.
type Role int

const (
	RoleUnset   Role = iota // stored record carries no role field
	RoleNormal              // implicit default for identities absent from the store
	RolePremium             // paid tier
	RoleStaff               // team member
	RoleFamous              // content creator / notable player
	RoleOwner               // server owner
)

var ErrInvalidRole = errors.New("invalid role: must be Normal, Premium, Staff, Famous or Owner")

var roleNames = map[Role]string{
	RoleNormal:  "Normal",
	RolePremium: "Premium",
	RoleStaff:   "Staff",
	RoleFamous:  "Famous",
	RoleOwner:   "Owner",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return ""
}

// ParseRole converts a wire name to a Role. Matching is exact, as clients
// compare role strings verbatim.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleUnset, ErrInvalidRole
}

// RoleNames returns the valid role names in tier order, useful for help text.
func RoleNames() string {
	names := make([]string, 0, len(roleNames))
	for r := RoleNormal; r <= RoleOwner; r++ {
		names = append(names, r.String())
	}
	return strings.Join(names, ", ")
}

// Valid returns true if the role is one of the five assignable tiers.
func (r Role) Valid() bool {
	return r >= RoleNormal && r <= RoleOwner
}

// Or returns r when set, fallback otherwise.
func (r Role) Or(fallback Role) Role {
	if r == RoleUnset {
		return fallback
	}
	return r
}

// MarshalText encodes the role by name. An unset role encodes as "".
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name. The empty string decodes to RoleUnset.
func (r *Role) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*r = RoleUnset
		return nil
	}
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
