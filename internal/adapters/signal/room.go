package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/hwos/streamrelay/internal/core"
	"github.com/hwos/streamrelay/internal/domain"
)

type userCountEvent struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type chatEvent struct {
	Type string `json:"type"`
	domain.ChatEvent
}

func (ctl *ChatController) handleJoin(cid core.ClientID, data []byte) {
	var p struct {
		Type      string `json:"type"`
		StreamKey string `json:"streamKey"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join_room payload")
		return
	}
	if p.StreamKey == "" {
		return
	}
	key := core.StreamKey(p.StreamKey)

	count := ctl.Rooms.Join(cid, key)
	log.Info().
		Str("module", "signal").
		Str("cid", string(cid)).
		Str("stream_key", p.StreamKey).
		Int("count", count).
		Msg("joined room")
	ctl.broadcastRoom(key, userCountEvent{Type: "user_joined", Count: count})
}

func (ctl *ChatController) handleLeave(cid core.ClientID, data []byte) {
	var p struct {
		Type      string `json:"type"`
		StreamKey string `json:"streamKey"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave_room payload")
		return
	}
	if p.StreamKey == "" {
		return
	}
	key := core.StreamKey(p.StreamKey)

	count := ctl.Rooms.Leave(cid, key)
	log.Info().
		Str("module", "signal").
		Str("cid", string(cid)).
		Str("stream_key", p.StreamKey).
		Int("count", count).
		Msg("left room")
	ctl.broadcastRoom(key, userCountEvent{Type: "user_left", Count: count})
}

func (ctl *ChatController) handleChat(cid core.ClientID, data []byte) {
	var p struct {
		Type      string `json:"type"`
		StreamKey string `json:"streamKey"`
		Message   string `json:"message"`
		Username  string `json:"username"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send_chat payload")
		return
	}
	if p.StreamKey == "" || p.Message == "" {
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(cid) {
		log.Warn().Str("module", "signal").Str("cid", string(cid)).Msg("chat rate limited")
		return
	}
	key := core.StreamKey(p.StreamKey)

	evt := domain.NewChatEvent(key, p.Username, p.Message)
	ctl.broadcastRoom(key, chatEvent{Type: "new_chat", ChatEvent: evt})
}
