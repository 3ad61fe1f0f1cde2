package app

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hwos/streamrelay/internal/app/sfu"
	"github.com/hwos/streamrelay/internal/core"
)

// Session is one live peer session. Exclusively owned by the Registry; its
// state changes only through Registry.OnStateChange.
type Session struct {
	ID   core.SessionID
	Role core.Role
	Key  core.StreamKey

	media  core.MediaConnection
	ctx    context.Context
	cancel context.CancelFunc

	state core.SessionState // guarded by the registry mutex
}

func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Media() core.MediaConnection { return s.media }

// Registry owns the set of live peer sessions and drives their state
// machine. Terminal states evict the session and clean its broadcast
// contributions and subscriptions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*Session
	streams  *sfu.BroadcastMap
}

func NewRegistry(streams *sfu.BroadcastMap) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*Session),
		streams:  streams,
	}
}

// NewSessionID allocates an identity for a session about to be created.
func NewSessionID() core.SessionID {
	return core.SessionID(uuid.NewString())
}

// Create allocates a session for a freshly received offer and enrolls it.
func (r *Registry) Create(ctx context.Context, sid core.SessionID, role core.Role, key core.StreamKey, media core.MediaConnection) *Session {
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &Session{
		ID:     sid,
		Role:   role,
		Key:    key,
		media:  media,
		ctx:    sessCtx,
		cancel: cancel,
		state:  core.StateNew,
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	log.Info().
		Str("module", "app.registry").
		Str("sid", string(sess.ID)).
		Str("role", role.String()).
		Str("stream_key", string(key)).
		Msg("created session")
	return sess
}

func (r *Registry) Get(sid core.SessionID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[sid]
	return sess, ok
}

// State returns the current state of a live session.
func (r *Registry) State(sid core.SessionID) (core.SessionState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if sess, ok := r.sessions[sid]; ok {
		return sess.state, true
	}
	return core.StateClosed, false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) ActiveSessions() []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SessionID, 0, len(r.sessions))
	for sid := range r.sessions {
		out = append(out, sid)
	}
	return out
}

// OnStateChange is the sole path by which session state transitions occur.
// Transitions the state machine does not allow are logged and dropped.
// A terminal state evicts the session and releases everything it held.
func (r *Registry) OnStateChange(sid core.SessionID, to core.SessionState) {
	r.mu.Lock()
	sess, ok := r.sessions[sid]
	if !ok {
		r.mu.Unlock()
		return
	}
	if !core.CanTransition(sess.state, to) {
		r.mu.Unlock()
		log.Warn().
			Str("module", "app.registry").
			Str("sid", string(sid)).
			Str("from", sess.state.String()).
			Str("to", to.String()).
			Msg("dropping disallowed state transition")
		return
	}
	from := sess.state
	sess.state = to
	if !to.Terminal() {
		r.mu.Unlock()
		log.Info().
			Str("module", "app.registry").
			Str("sid", string(sid)).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("session state")
		return
	}
	delete(r.sessions, sid)
	r.mu.Unlock()

	// Teardown runs outside the lock: closing the media connection re-enters
	// OnStateChange, which is a no-op once the session is evicted.
	sess.cancel()
	r.streams.DropContributor(sid)
	r.streams.DropConsumer(sid)
	sess.media.Close()

	log.Info().
		Str("module", "app.registry").
		Str("sid", string(sid)).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("session closed")
}

// Close tears the session down. Idempotent: a second call finds no session
// and does nothing.
func (r *Registry) Close(sid core.SessionID) {
	r.OnStateChange(sid, core.StateClosed)
}

// Shutdown closes every active session, waiting no longer than ctx allows.
func (r *Registry) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, sid := range r.ActiveSessions() {
			r.Close(sid)
		}
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Str("module", "app.registry").Msg("shutdown wait expired with sessions still closing")
	}
}
