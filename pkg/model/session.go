package model

import "time"

// Session is the live binding between a connection and an identity (in-memory only).
type Session struct {
	ConnID      string
	Identity    string
	DisplayName string
	Role        Role
	RemoteAddr  string
	BoundAt     time.Time
}
