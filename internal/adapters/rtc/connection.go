package rtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hwos/streamrelay/internal/core"
)

type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	sid    core.SessionID
	cancel context.CancelFunc

	onTrack func(ctx context.Context, src core.TrackSource)
	onState func(core.SessionState)

	closeOnce sync.Once
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewWebRTCConnection(cfg webrtc.Configuration, sid core.SessionID) (*WebRTCConnection, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &WebRTCConnection{pc: pc, sid: sid}, nil
}

// mapState translates the pion connection state into the session state
// machine. Disconnected has no mapping: pion may still recover from it, so
// it is reported as (0, false) and skipped.
func mapState(s webrtc.PeerConnectionState) (core.SessionState, bool) {
	switch s {
	case webrtc.PeerConnectionStateNew:
		return core.StateNew, true
	case webrtc.PeerConnectionStateConnecting:
		return core.StateConnecting, true
	case webrtc.PeerConnectionStateConnected:
		return core.StateConnected, true
	case webrtc.PeerConnectionStateFailed:
		return core.StateFailed, true
	case webrtc.PeerConnectionStateClosed:
		return core.StateClosed, true
	}
	return core.StateNew, false
}

func (c *WebRTCConnection) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().
			Str("module", "rtc").
			Str("sid", string(c.sid)).
			Str("peer_connection_state", s.String()).
			Msg("peer state")
		state, ok := mapState(s)
		if !ok {
			return
		}
		if state.Terminal() {
			cancel()
		}
		if c.onState != nil {
			c.onState(state)
		}
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("sid", string(c.sid)).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		if c.onTrack != nil {
			c.onTrack(ctx, track)
		}
	})

	return nil
}

func (c *WebRTCConnection) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return c.pc.LocalDescription(), nil
}

func (c *WebRTCConnection) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if err := c.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("sid", string(c.sid)).Msg("close error")
		} else {
			log.Info().Str("module", "rtc").Str("sid", string(c.sid)).Msg("closed")
		}
	})
}

// AddLocalTrack attaches a local static RTP track to the PeerConnection.
func (c *WebRTCConnection) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	return c.pc.AddTrack(track)
}

// OnTrack sets the application-level callback for remote tracks.
func (c *WebRTCConnection) OnTrack(fn func(ctx context.Context, src core.TrackSource)) {
	c.onTrack = fn
}

// OnStateChange sets the application-level callback for state transitions.
func (c *WebRTCConnection) OnStateChange(fn func(core.SessionState)) {
	c.onState = fn
}
