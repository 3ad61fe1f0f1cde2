package sfu

import (
	"sync/atomic"

	"github.com/hwos/streamrelay/internal/core"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

// OutTrack represents a single outgoing track to one viewer session.
type OutTrack struct {
	Track core.RTPWriter
	state atomic.Int32 // Zero by default (TrackStateOk)
}

func NewOutTrack(track core.RTPWriter) *OutTrack {
	return &OutTrack{Track: track}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.Store(int32(TrackStateOk))
}

func (ot *OutTrack) MarkMuted() {
	ot.state.Store(int32(TrackStateMuted))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
