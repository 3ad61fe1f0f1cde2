// Package domain contains entities without logic, just meta-data.
package domain

import (
	"time"

	"github.com/hwos/streamrelay/internal/core"
)

const MaxUsernameLen = 36

const AnonymousUsername = "Anonymous"

// ChatEvent is a transient chat message. It is forwarded to the members of
// the room at send time and never stored.
type ChatEvent struct {
	StreamKey core.StreamKey `json:"-"`
	Username  string         `json:"username"`
	Message   string         `json:"message"`
	// Timestamp is server-assigned, seconds since epoch.
	Timestamp float64 `json:"timestamp"`
}

// NewChatEvent stamps a chat message with the current server time.
func NewChatEvent(key core.StreamKey, username, message string) ChatEvent {
	if username == "" {
		username = AnonymousUsername
	}
	if len(username) > MaxUsernameLen {
		username = username[:MaxUsernameLen]
	}
	return ChatEvent{
		StreamKey: key,
		Username:  username,
		Message:   message,
		Timestamp: float64(time.Now().UnixMilli()) / 1000,
	}
}
