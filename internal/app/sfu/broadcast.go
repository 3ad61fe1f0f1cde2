package sfu

import (
	"context"
	"sync"

	"github.com/hwos/streamrelay/internal/core"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// RelayedTrack is one live track of a broadcast, fanned out to any number of
// viewer sessions through its relay.
type RelayedTrack struct {
	id          string
	streamID    string
	kind        webrtc.RTPCodecType
	codec       webrtc.RTPCodecParameters
	contributor core.SessionID
	relay       *Relay
}

func (t *RelayedTrack) ID() string { return t.id }

func (t *RelayedTrack) Kind() webrtc.RTPCodecType { return t.kind }

func (t *RelayedTrack) Contributor() core.SessionID { return t.contributor }

// NewLocalTrack builds a fresh local track carrying this relay's media,
// suitable for attaching to one viewer's peer connection.
func (t *RelayedTrack) NewLocalTrack() (*webrtc.TrackLocalStaticRTP, error) {
	return webrtc.NewTrackLocalStaticRTP(t.codec.RTPCodecCapability, t.id, t.streamID)
}

// Subscribe registers a consumer. The consumer starts receiving the packets
// forwarded from now on; nothing is replayed.
func (t *RelayedTrack) Subscribe(dst core.SessionID, w core.RTPWriter) {
	t.relay.AddOutTrack(dst, NewOutTrack(w))
}

// Unsubscribe detaches a consumer. Idempotent.
func (t *RelayedTrack) Unsubscribe(dst core.SessionID) {
	t.relay.MarkOutTrackDelete(dst)
}

// BroadcastMap maps a stream key to the relayed tracks its broadcaster is
// currently contributing. It is the unit of fan-out: viewers attach to a
// snapshot of the entry at offer time.
type BroadcastMap struct {
	mu      sync.RWMutex
	streams map[core.StreamKey][]*RelayedTrack
}

func NewBroadcastMap() *BroadcastMap {
	return &BroadcastMap{streams: make(map[core.StreamKey][]*RelayedTrack)}
}

// Register wraps an inbound track in a relay and appends it to the stream
// key's entry, creating the entry lazily. A stream carries at most one track
// per media kind: a renegotiated track of the same kind replaces its
// predecessor. The relay loop runs until src ends or ctx is canceled, then
// the track deregisters itself, pruning the entry when it becomes empty.
func (m *BroadcastMap) Register(ctx context.Context, key core.StreamKey, contributor core.SessionID, src core.TrackSource) *RelayedTrack {
	logger := log.With().
		Str("module", "sfu").
		Str("stream_key", string(key)).
		Str("sid", string(contributor)).
		Str("kind", src.Kind().String()).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(src, cancel)
	rt := &RelayedTrack{
		id:          src.ID(),
		streamID:    src.StreamID(),
		kind:        src.Kind(),
		codec:       src.Codec(),
		contributor: contributor,
		relay:       relay,
	}
	relay.onEnded = func() {
		logger.Info().Msg("track ended, deregistering")
		m.deregister(key, rt)
	}

	var replaced *RelayedTrack
	m.mu.Lock()
	tracks := m.streams[key]
	for i, old := range tracks {
		if old.kind == rt.kind {
			replaced = old
			tracks = append(tracks[:i], tracks[i+1:]...)
			break
		}
	}
	m.streams[key] = append(tracks, rt)
	m.mu.Unlock()

	if replaced != nil {
		logger.Info().Msg("replacing same-kind track")
		replaced.relay.stop()
	}

	logger.Info().Msg("registered relayed track")
	go relay.loop(relayCtx, &logger)
	return rt
}

// TracksFor returns the current snapshot for a stream key. An empty slice is
// a valid outcome: the key is unknown or its broadcaster contributes nothing
// right now.
func (m *BroadcastMap) TracksFor(key core.StreamKey) []*RelayedTrack {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tracks := m.streams[key]
	out := make([]*RelayedTrack, len(tracks))
	copy(out, tracks)
	return out
}

// HasBroadcast reports whether a stream key has live tracks.
func (m *BroadcastMap) HasBroadcast(key core.StreamKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams[key]) > 0
}

func (m *BroadcastMap) deregister(key core.StreamKey, rt *RelayedTrack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tracks := m.streams[key]
	for i, t := range tracks {
		if t == rt {
			tracks = append(tracks[:i], tracks[i+1:]...)
			break
		}
	}
	if len(tracks) == 0 {
		delete(m.streams, key)
		return
	}
	m.streams[key] = tracks
}

// DropContributor stops every relay the session contributed and prunes the
// affected entries.
func (m *BroadcastMap) DropContributor(sid core.SessionID) {
	var stopped []*RelayedTrack
	m.mu.Lock()
	for key, tracks := range m.streams {
		kept := tracks[:0]
		for _, t := range tracks {
			if t.contributor == sid {
				stopped = append(stopped, t)
				continue
			}
			kept = append(kept, t)
		}
		if len(kept) == 0 {
			delete(m.streams, key)
			continue
		}
		m.streams[key] = kept
	}
	m.mu.Unlock()

	for _, t := range stopped {
		t.relay.stop()
	}
}

// DropConsumer detaches the session from every relay it subscribed to.
func (m *BroadcastMap) DropConsumer(sid core.SessionID) {
	m.mu.RLock()
	var all []*RelayedTrack
	for _, tracks := range m.streams {
		all = append(all, tracks...)
	}
	m.mu.RUnlock()

	for _, t := range all {
		t.Unsubscribe(sid)
	}
}

// Clear stops every relay and empties the map. Used on process shutdown.
func (m *BroadcastMap) Clear() {
	m.mu.Lock()
	var all []*RelayedTrack
	for _, tracks := range m.streams {
		all = append(all, tracks...)
	}
	m.streams = make(map[core.StreamKey][]*RelayedTrack)
	m.mu.Unlock()

	for _, t := range all {
		t.relay.stop()
	}
}
