package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/soarclient/soarsocket/pkg/model"
)

// RequestIdentity is sent as soon as a connection is accepted.
type RequestIdentity struct {
	Type string `json:"type"`
}

// RoleUpdate carries the current role of the receiving session.
type RoleUpdate struct {
	Type string `json:"type"`
	Role string `json:"role"`
}

// ServerMessage is a human-readable notice.
type ServerMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// DirectoryEntry is one stored identity in a directory snapshot.
type DirectoryEntry struct {
	DisplayName string `json:"displayName"`
	Identity    string `json:"identity"`
	Role        string `json:"role"`
}

// UserDirectory lists every stored identity and its role.
type UserDirectory struct {
	Type  string           `json:"type"`
	Users []DirectoryEntry `json:"users"`
}

func NewRequestIdentity() RequestIdentity {
	return RequestIdentity{Type: TypeRequestIdentity}
}

func NewRoleUpdate(role model.Role) RoleUpdate {
	return RoleUpdate{Type: TypeRoleUpdate, Role: role.String()}
}

func NewServerMessage(text string) ServerMessage {
	return ServerMessage{Type: TypeServerMessage, Message: text}
}

// NewUserDirectory never produces a null users array.
func NewUserDirectory(entries []DirectoryEntry) UserDirectory {
	if entries == nil {
		entries = []DirectoryEntry{}
	}
	return UserDirectory{Type: TypeUserDirectory, Users: entries}
}

// NewIdentityAnnouncement builds the client-side announcement frame.
func NewIdentityAnnouncement(identity, displayName string) Envelope {
	return Envelope{Type: TypeIdentityAnnouncement, Identity: identity, DisplayName: displayName}
}

// Encode marshals an outbound frame. Outbound frames are not size-limited;
// a directory snapshot grows with the store.
func Encode(frame any) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal: %w", err)
	}
	return data, nil
}
