// Package signal serves the persistent room presence & chat channel. It is
// independent of the media path: clients join stream-key rooms and exchange
// presence counts and chat events, nothing else.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hwos/streamrelay/internal/app"
	"github.com/hwos/streamrelay/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// chatConn is one client's outbound half. Delivery is at-most-once: TrySend
// never blocks and a full buffer is an error.
type chatConn interface {
	TrySend(data []byte) error
	Close()
}

type ChatController struct {
	Rooms   *app.RoomManager
	Policy  app.Policy
	Limiter *ChatRateLimiter

	ReadLimit  int64
	SendBuffer int
	PingPeriod time.Duration

	mu      sync.RWMutex
	clients map[core.ClientID]chatConn
}

func NewChatController(rooms *app.RoomManager, limiter *ChatRateLimiter) *ChatController {
	return &ChatController{
		Rooms:      rooms,
		Policy:     app.SimplePolicy{},
		Limiter:    limiter,
		SendBuffer: 32,
		clients:    make(map[core.ClientID]chatConn),
	}
}

type wsChatConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func (c *wsChatConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsChatConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleChannel upgrades the request and runs the client's pumps until the
// connection drops. Each connection gets its own client id; nothing survives
// a reconnect.
func (ctl *ChatController) HandleChannel(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	cid := core.ClientID(uuid.NewString())
	conn := &wsChatConn{
		conn: ws,
		send: make(chan []byte, ctl.SendBuffer),
	}
	ctl.addClient(cid, conn)
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("chat client connected")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cid, conn)
}

func (ctl *ChatController) addClient(cid core.ClientID, conn chatConn) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	ctl.clients[cid] = conn
}

func (ctl *ChatController) removeClient(cid core.ClientID) (chatConn, bool) {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	conn, ok := ctl.clients[cid]
	if ok {
		delete(ctl.clients, cid)
	}
	return conn, ok
}

func (ctl *ChatController) client(cid core.ClientID) (chatConn, bool) {
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	conn, ok := ctl.clients[cid]
	return conn, ok
}

// disconnect drops the client from every room it joined and tells those
// rooms about the departure.
func (ctl *ChatController) disconnect(cid core.ClientID) {
	conn, ok := ctl.removeClient(cid)
	if !ok {
		return
	}
	conn.Close()
	if ctl.Limiter != nil {
		ctl.Limiter.Forget(cid)
	}
	for _, rc := range ctl.Rooms.DropClient(cid) {
		ctl.broadcastRoom(rc.Key, userCountEvent{Type: "user_left", Count: rc.Count})
	}
	log.Info().Str("module", "signal").Str("cid", string(cid)).Msg("chat client disconnected")
}
