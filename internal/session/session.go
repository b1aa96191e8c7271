package session

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/n4ldr/smcontrol/internal/protocol"
)

// Sentinel errors for session-level failures. State-machine failures are
// returned as values; nothing here panics or throws asynchronously.
var (
	ErrHandshakeExhausted = errors.New("handshake candidates exhausted")
	ErrRejected           = errors.New("rejected by radio")
	ErrCancelled          = errors.New("cancelled")
	ErrNotConnected       = errors.New("not connected")
	ErrCommandTimeout     = errors.New("command timeout")
	ErrConnectionLost     = errors.New("connection lost")
)

// State is the lifecycle state of an established session.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateDegraded
	StateLost
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateDegraded:
		return "DEGRADED"
	case StateLost:
		return "LOST"
	default:
		return "DISCONNECTED"
	}
}

// Session is the accepted identity plus per-channel activity tracking. The
// identity fields are written exactly once, on handshake acceptance, and are
// read-only afterwards; activity is tracked with atomics because the keeper's
// degradation check reads it concurrently with the channel receive paths.
type Session struct {
	identity      Identity
	establishedAt time.Time

	state atomic.Int32

	// Milliseconds of silence per channel, advanced by the keeper's tick
	// and zeroed by the owning channel's receive path.
	silenceMS    [protocol.RoleCount]atomic.Int64
	lastActivity [protocol.RoleCount]atomic.Int64 // unix nanos
}

// NewSession promotes an accepted identity to the active session.
func NewSession(identity Identity, now time.Time) *Session {
	s := &Session{identity: identity, establishedAt: now}
	s.state.Store(int32(StateConnected))
	for role := range s.lastActivity {
		s.lastActivity[role].Store(now.UnixNano())
	}
	return s
}

// Identity returns the accepted session pair.
func (s *Session) Identity() Identity {
	return s.identity
}

// EstablishedAt returns when the handshake completed.
func (s *Session) EstablishedAt() time.Time {
	return s.establishedAt
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// SetState records a lifecycle transition. Lost is sticky: a session that
// timed out never returns to Connected, reconnection means a new session.
func (s *Session) SetState(state State) {
	if s.State() == StateLost && state != StateDisconnected {
		return
	}
	s.state.Store(int32(state))
}

// Touch records inbound activity on a channel.
func (s *Session) Touch(role protocol.PortRole, now time.Time) {
	s.silenceMS[role].Store(0)
	s.lastActivity[role].Store(now.UnixNano())
}

// AdvanceSilence adds ms of elapsed time to every channel's silence counter
// and returns the updated values.
func (s *Session) AdvanceSilence(ms int64) [protocol.RoleCount]int64 {
	var out [protocol.RoleCount]int64
	for role := range out {
		out[role] = s.silenceMS[role].Add(ms)
	}
	return out
}

// LastActivity returns the time of the last inbound frame on a channel.
func (s *Session) LastActivity(role protocol.PortRole) time.Time {
	return time.Unix(0, s.lastActivity[role].Load())
}

// Frame builds an envelope tagged with the session identity.
func (s *Session) Frame(command uint8, payload []byte) *protocol.Frame {
	return &protocol.Frame{
		SessionA: s.identity.A,
		SessionB: s.identity.B,
		Command:  command,
		Payload:  payload,
	}
}
