// Package orch wires the registry, broadcast map and room manager into the
// signaling operations exposed over HTTP and the chat channel.
package orch

import (
	"context"
	"fmt"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/hwos/streamrelay/internal/app"
	"github.com/hwos/streamrelay/internal/app/sfu"
	"github.com/hwos/streamrelay/internal/core"
)

// MediaFactory builds the peer connection for a new session. Injected so the
// transport adapter owns the pion wiring and tests can substitute fakes.
type MediaFactory func(sid core.SessionID) (core.MediaConnection, error)

type Orchestrator struct {
	Registry *app.Registry
	Streams  *sfu.BroadcastMap
	Rooms    *app.RoomManager
	Validate core.StreamKeyValidator
	NewMedia MediaFactory
}

// HandleOffer negotiates one session for a posted SDP offer. Broadcaster
// sessions get their future inbound tracks wired into the broadcast map;
// viewer sessions are attached to a snapshot of the key's relayed tracks. A
// viewer offer for an unknown or empty key yields a valid media-less answer,
// not an error.
func (o *Orchestrator) HandleOffer(ctx context.Context, offerSDP string, key core.StreamKey, broadcaster bool) (*webrtc.SessionDescription, error) {
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(offerSDP)); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidOffer, err)
	}

	if broadcaster {
		if o.Validate != nil && !o.Validate(key) {
			return nil, fmt.Errorf("%w: %q", core.ErrStreamKeyRejected, key)
		}
		if o.Streams.HasBroadcast(key) {
			return nil, fmt.Errorf("%w: %q", core.ErrBroadcastActive, key)
		}
	}

	role := core.RoleViewer
	if broadcaster {
		role = core.RoleBroadcaster
	}
	sid := app.NewSessionID()

	media, err := o.NewMedia(sid)
	if err != nil {
		return nil, fmt.Errorf("create media connection: %w", err)
	}
	sess := o.Registry.Create(ctx, sid, role, key, media)

	media.OnStateChange(func(s core.SessionState) {
		o.Registry.OnStateChange(sid, s)
	})

	if broadcaster {
		media.OnTrack(func(trackCtx context.Context, src core.TrackSource) {
			o.Streams.Register(trackCtx, key, sid, src)
		})
	} else {
		o.attachViewer(sid, key, media)
	}

	if err := media.Start(sess.Context()); err != nil {
		o.Registry.Close(sid)
		return nil, fmt.Errorf("start media connection: %w", err)
	}

	answer, err := media.ApplyOfferAndCreateAnswer(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  offerSDP,
	})
	if err != nil {
		o.Registry.Close(sid)
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidOffer, err)
	}
	return answer, nil
}

// attachViewer subscribes the new session to the stream's current tracks.
// Tracks registered after this point are not attached retroactively; the
// viewer renegotiates to pick them up.
func (o *Orchestrator) attachViewer(sid core.SessionID, key core.StreamKey, media core.MediaConnection) {
	for _, rt := range o.Streams.TracksFor(key) {
		local, err := rt.NewLocalTrack()
		if err != nil {
			log.Error().Err(err).
				Str("module", "orch").
				Str("sid", string(sid)).
				Str("track_id", rt.ID()).
				Msg("building local track")
			continue
		}
		if _, err := media.AddLocalTrack(local); err != nil {
			log.Error().Err(err).
				Str("module", "orch").
				Str("sid", string(sid)).
				Str("track_id", rt.ID()).
				Msg("attaching local track")
			continue
		}
		rt.Subscribe(sid, local)
	}
}

// Shutdown closes every active session within the ctx deadline, then clears
// the broadcast map unconditionally.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.Registry.Shutdown(ctx)
	o.Streams.Clear()
}
