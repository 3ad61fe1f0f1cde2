package core

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// TrackSource is an inbound media track read by the relay.
// *webrtc.TrackRemote satisfies it.
type TrackSource interface {
	ID() string
	StreamID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// RTPWriter is a downstream consumer of relayed packets.
// *webrtc.TrackLocalStaticRTP satisfies it.
type RTPWriter interface {
	WriteRTP(*rtp.Packet) error
}

// MediaConnection abstracts a peer connection for the signaling layer.
// Owned by the registry; the registry must Close() it on terminal states.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close stops all underlying media resources. Safe to call more than once.
	Close()
	// ApplyOfferAndCreateAnswer applies the remote offer and returns the
	// gathered local answer.
	ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)
	// AddLocalTrack attaches a local static RTP track to the underlying PeerConnection.
	AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error)
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, src TrackSource))
	// OnStateChange sets a callback for connectivity state transitions.
	OnStateChange(func(state SessionState))
}
