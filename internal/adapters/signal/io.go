package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hwos/streamrelay/internal/app"
	"github.com/hwos/streamrelay/internal/core"
)

func (ctl *ChatController) writePump(ctx context.Context, c *wsChatConn) {
	period := ctl.PingPeriod
	if period <= 0 {
		period = 54 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *ChatController) readPump(ctx context.Context, cancel context.CancelFunc, cid core.ClientID, c *wsChatConn) {
	defer func() {
		cancel()
		ctl.disconnect(cid)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("readPump read error")
				return
			}
			ctl.handleEvent(cid, data)
		}
	}
}

func (ctl *ChatController) handleEvent(cid core.ClientID, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join_room":
		ctl.handleJoin(cid, data)
	case "leave_room":
		ctl.handleLeave(cid, data)
	case "send_chat":
		ctl.handleChat(cid, data)
	case "ping":
		ctl.handlePing(cid)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown channel event")
	}
}

func (ctl *ChatController) sendJSON(cid core.ClientID, v any) {
	conn, ok := ctl.client(cid)
	if !ok {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := conn.TrySend(b); err != nil {
		ctl.onSendFailure(cid)
	}
}

// broadcastRoom delivers v to every client currently joined to the room.
// There is no buffering for absent members and no acknowledgement.
func (ctl *ChatController) broadcastRoom(key core.StreamKey, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("broadcast marshal")
		return
	}
	for _, member := range ctl.Rooms.Members(key) {
		conn, ok := ctl.client(member)
		if !ok {
			continue
		}
		if err := conn.TrySend(b); err != nil {
			log.Warn().
				Str("module", "signal").
				Str("cid", string(member)).
				Str("stream_key", string(key)).
				Msg("member not keeping up")
			ctl.onSendFailure(member)
		}
	}
}

func (ctl *ChatController) onSendFailure(cid core.ClientID) {
	action := app.NoAction
	if ctl.Policy != nil {
		action = ctl.Policy.OnBackPressure()
	}
	switch action {
	case app.KickClient:
		ctl.disconnect(cid)
	case app.DropEvent, app.NoAction:
	}
}
