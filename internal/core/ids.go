package core

// SessionID identifies one negotiated peer session.
type SessionID string

// StreamKey correlates a broadcaster's media with its viewers and chat room.
type StreamKey string

// ClientID identifies one connected chat channel client.
type ClientID string

type Role int

const (
	RoleBroadcaster Role = iota
	RoleViewer
)

func (r Role) String() string {
	if r == RoleBroadcaster {
		return "broadcaster"
	}
	return "viewer"
}
