// Package protocol defines the JSON frames exchanged over the websocket.
//
// Every frame is a single JSON object carrying a "type" field. Inbound
// frames are decoded into a tagged variant at the boundary; anything that
// does not parse, or parses into an unsupported type, is reported as a
// distinct error instead of being passed through.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/soarclient/soarsocket/pkg/model"
)

// Frame types.
const (
	TypeRequestIdentity      = "request_identity"
	TypeIdentityAnnouncement = "identity_announcement"
	TypeRoleUpdate           = "role_update"
	TypeServerMessage        = "server_message"
	TypeUserDirectory        = "user_directory"

	// TypeLegacyAnnouncement is the announcement form sent by older clients:
	// {"type":"user_uuid","uuid":...,"name":...}.
	TypeLegacyAnnouncement = "user_uuid"
)

// MaxFrameSize is the largest inbound frame accepted (64KB).
const MaxFrameSize = 65536

var (
	ErrMalformed     = errors.New("protocol: malformed frame")
	ErrUnknownType   = errors.New("protocol: unknown frame type")
	ErrFrameTooLarge = errors.New("protocol: frame too large")
)

// Envelope is the union of every field any frame may carry. Clients decode
// server frames into it; the server only uses it as an intermediate form.
type Envelope struct {
	Type        string           `json:"type"`
	Identity    string           `json:"identity,omitempty"`
	DisplayName string           `json:"displayName,omitempty"`
	Role        string           `json:"role,omitempty"`
	Message     string           `json:"message,omitempty"`
	Users       []DirectoryEntry `json:"users,omitempty"`

	UUID string `json:"uuid,omitempty"`
	Name string `json:"name,omitempty"`
}

// Inbound is a decoded client frame.
type Inbound interface {
	FrameType() string
}

// IdentityAnnouncement binds the sending connection to an identity.
type IdentityAnnouncement struct {
	Identity    string
	DisplayName string
}

func (IdentityAnnouncement) FrameType() string { return TypeIdentityAnnouncement }

// Decode parses one inbound frame.
//
// Returns ErrMalformed (wrapped) for invalid JSON, a missing type or an
// announcement without a usable identity, and ErrUnknownType (wrapped) for
// well-formed frames of any type the server does not accept from clients.
func Decode(data []byte) (Inbound, error) {
	if len(data) > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	case TypeIdentityAnnouncement:
		return newAnnouncement(env.Identity, env.DisplayName)
	case TypeLegacyAnnouncement:
		return newAnnouncement(env.UUID, env.Name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func newAnnouncement(identity, displayName string) (Inbound, error) {
	if err := model.ValidateIdentity(identity); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return IdentityAnnouncement{
		Identity:    identity,
		DisplayName: model.SanitizeDisplayName(displayName),
	}, nil
}

// DecodeEnvelope parses any frame into the union form without validation.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return env, nil
}
