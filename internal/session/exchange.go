package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/n4ldr/smcontrol/internal/protocol"
)

// pendingKey correlates a response to its request: the radio answers with the
// addresses swapped and either the same op or a single-byte result op.
type pendingKey struct {
	to   uint8
	from uint8
	op   uint8
}

type pendingRequest struct {
	submittedAt time.Time
	done        chan exchangeResult
}

type exchangeResult struct {
	cmd protocol.Command
	err error
}

// Exchange sends embedded CI-V commands on the serial channel and correlates
// responses to blocked submitters. Unmatched responses are not errors: pure
// broadcasts are surfaced as passive notifications, everything else is
// dropped.
type Exchange struct {
	out    ChannelSet
	sess   *Session
	log    zerolog.Logger
	notify func(protocol.Command)

	mu      sync.Mutex
	pending map[pendingKey]*pendingRequest
}

// NewExchange creates an exchange over an established session. notify, when
// non-nil, receives broadcast records addressed to no controller.
func NewExchange(out ChannelSet, sess *Session, notify func(protocol.Command), log zerolog.Logger) *Exchange {
	return &Exchange{
		out:     out,
		sess:    sess,
		log:     log.With().Str("component", "exchange").Logger(),
		notify:  notify,
		pending: make(map[pendingKey]*pendingRequest),
	}
}

// Submit sends one command and blocks until the matching response arrives,
// the timeout passes, or ctx is cancelled. It fails immediately with
// ErrNotConnected when no connected session is active, sending nothing.
func (e *Exchange) Submit(ctx context.Context, cmd protocol.Command, timeout time.Duration) (protocol.Command, error) {
	if e.sess.State() != StateConnected {
		return protocol.Command{}, fmt.Errorf("%w: session is %s", ErrNotConnected, e.sess.State())
	}

	key := pendingKey{to: cmd.From, from: cmd.To, op: cmd.Op}
	req := &pendingRequest{submittedAt: time.Now(), done: make(chan exchangeResult, 1)}

	e.mu.Lock()
	if _, exists := e.pending[key]; exists {
		e.mu.Unlock()
		return protocol.Command{}, fmt.Errorf("request op=0x%02X already in flight", cmd.Op)
	}
	e.pending[key] = req
	e.mu.Unlock()

	frame := e.sess.Frame(protocol.CmdCIV, cmd.Encode())
	if err := e.out.Send(protocol.RoleSerial, frame); err != nil {
		e.remove(key)
		return protocol.Command{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-req.done:
		return res.cmd, res.err
	case <-timer.C:
		e.remove(key)
		return protocol.Command{}, fmt.Errorf("%w: op=0x%02X after %v", ErrCommandTimeout, cmd.Op, timeout)
	case <-ctx.Done():
		e.remove(key)
		return protocol.Command{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	}
}

// HandleFrame feeds one inbound frame to the correlator. Non-command frames,
// frames not carrying the active session identity, and undecodable payloads
// are dropped here; the enclosing frame was already counted as channel
// activity.
func (e *Exchange) HandleFrame(role protocol.PortRole, f *protocol.Frame) {
	if f.Command != protocol.CmdCIV {
		return
	}
	if id := e.sess.Identity(); f.SessionA != id.A || f.SessionB != id.B {
		e.log.Debug().
			Uint32("session_a", f.SessionA).
			Uint32("session_b", f.SessionB).
			Msg("dropping command frame with foreign session identity")
		return
	}
	cmd, err := protocol.DecodeCommand(f.Payload)
	if err != nil {
		e.log.Debug().Err(err).Stringer("channel", role).Msg("dropping undecodable command payload")
		return
	}

	e.mu.Lock()
	req := e.match(cmd)
	e.mu.Unlock()

	if req != nil {
		req.done <- exchangeResult{cmd: cmd}
		return
	}

	if cmd.To == protocol.BroadcastAddr && e.notify != nil {
		e.notify(cmd)
		return
	}
	e.log.Debug().Stringer("cmd", &cmd).Msg("dropping unmatched response")
}

// match resolves and removes the pending request for cmd. Exact op match
// first; a bare OK/NG result resolves the oldest request with the same
// address pair, since the radio acknowledges set commands with a result op
// instead of echoing the request op. Caller holds e.mu.
func (e *Exchange) match(cmd protocol.Command) *pendingRequest {
	key := pendingKey{to: cmd.To, from: cmd.From, op: cmd.Op}
	if req, ok := e.pending[key]; ok {
		delete(e.pending, key)
		return req
	}

	if cmd.Op != protocol.CIVResultOK && cmd.Op != protocol.CIVResultNG {
		return nil
	}
	var oldestKey pendingKey
	var oldest *pendingRequest
	for k, req := range e.pending {
		if k.to != cmd.To || k.from != cmd.From {
			continue
		}
		if oldest == nil || req.submittedAt.Before(oldest.submittedAt) {
			oldestKey, oldest = k, req
		}
	}
	if oldest != nil {
		delete(e.pending, oldestKey)
	}
	return oldest
}

// FailAll resolves every pending request with err. The keeper calls this
// through the controller when the session is lost.
func (e *Exchange) FailAll(err error) {
	e.mu.Lock()
	pending := e.pending
	e.pending = make(map[pendingKey]*pendingRequest)
	e.mu.Unlock()

	for _, req := range pending {
		req.done <- exchangeResult{err: err}
	}
	if len(pending) > 0 {
		e.log.Warn().Int("failed", len(pending)).Err(err).Msg("failed all pending requests")
	}
}

// PendingCount reports how many requests are awaiting responses.
func (e *Exchange) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *Exchange) remove(key pendingKey) {
	e.mu.Lock()
	delete(e.pending, key)
	e.mu.Unlock()
}
