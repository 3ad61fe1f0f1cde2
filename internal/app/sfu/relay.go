package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/hwos/streamrelay/internal/core"
	"github.com/pion/rtp"
	"github.com/rs/zerolog"
)

// Relay pumps one upstream track to any number of independent consumers.
// Packets are forwarded as-is; there is no re-encode.
type Relay struct {
	src core.TrackSource

	mu        sync.RWMutex
	outTracks map[core.SessionID]*OutTrack

	cancel  context.CancelFunc
	onEnded func()
}

func NewRelay(src core.TrackSource, cancel context.CancelFunc) *Relay {
	return &Relay{
		src:       src,
		outTracks: make(map[core.SessionID]*OutTrack),
		cancel:    cancel,
	}
}

// loop reads RTP packets from the source track and forwards them to all OutTracks.
// When the source ends (read error) or the context is canceled, all consumers
// are marked for delete and onEnded fires once.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer func() {
		r.markAllDelete()
		if r.onEnded != nil {
			r.onEnded()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			return
		default:
		}
		pkt, _, err := r.src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended")
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := make(map[core.SessionID]*OutTrack, len(r.outTracks))
	maps.Copy(snapshot, r.outTracks)
	r.mu.RUnlock()

	dirty := make([]core.SessionID, 0, len(snapshot))
	for dstSID, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dstSID)
		case TrackStateMuted:
		case TrackStateOk:
			if err := ot.Track.WriteRTP(pkt); err != nil {
				logger.Error().
					Err(err).
					Str("dst_sid", string(dstSID)).
					Msg("relay write RTP error, marking outtrack as delete")
				ot.MarkDelete()
				dirty = append(dirty, dstSID)
			}
		}
	}

	// Cleanup is done outside the read path.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range dirty {
		delete(r.outTracks, sid)
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.MarkDelete()
	}
}

func (r *Relay) AddOutTrack(dst core.SessionID, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[dst] = ot
}

func (r *Relay) MarkOutTrackDelete(dst core.SessionID) {
	r.mu.RLock()
	ot, ok := r.outTracks[dst]
	r.mu.RUnlock()
	if ok {
		ot.MarkDelete()
	}
}

func (r *Relay) stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.markAllDelete()
}
