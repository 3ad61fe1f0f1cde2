package signal

import "github.com/hwos/streamrelay/internal/core"

func (ctl *ChatController) handlePing(cid core.ClientID) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(cid, resp)
}
