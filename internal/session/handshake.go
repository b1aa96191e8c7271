package session

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/n4ldr/smcontrol/internal/network"
	"github.com/n4ldr/smcontrol/internal/protocol"
)

// ChannelSet sends frames on one of the three channels. The controller backs
// it with real UDP channels; tests back it with a recorder.
type ChannelSet interface {
	Send(role protocol.PortRole, f *protocol.Frame) error
}

// AcceptMatcher decides whether a control-channel frame accepts the candidate
// pair just sent. The radio's acceptance condition is inferred from captures,
// not documented, so it stays pluggable.
type AcceptMatcher func(candidate Identity, f *protocol.Frame) bool

// EchoAccept is the default matcher: the radio echoes both session fields of
// an accepted candidate back on the control channel.
func EchoAccept(candidate Identity, f *protocol.Frame) bool {
	return f.SessionA == candidate.A && f.SessionB == candidate.B
}

// HandshakeState is the phase of the login → connect → ready sequence.
type HandshakeState int

const (
	HandshakeIdle HandshakeState = iota
	HandshakeCandidateTrying
	HandshakeConnectPending
	HandshakeReadyPending
	HandshakeConnected
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeIdle:
		return "IDLE"
	case HandshakeCandidateTrying:
		return "CANDIDATE_TRYING"
	case HandshakeConnectPending:
		return "CONNECT_PENDING"
	case HandshakeReadyPending:
		return "READY_PENDING"
	case HandshakeConnected:
		return "CONNECTED"
	case HandshakeFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// HandshakeConfig bounds one connection attempt.
type HandshakeConfig struct {
	Username string
	Password string

	CandidateTimeoutMS int // wait per candidate and per connect/ready round
	PhaseRetries       int // connect/ready resend rounds before giving up
	GlobalBudgetMS     int // hard bound on the whole attempt
	Accept             AcceptMatcher
}

// DefaultHandshakeConfig applies the timing observed to hold the radio's
// attention: 3s per candidate, 3 retries per phase, 45s overall.
func DefaultHandshakeConfig(username, password string) HandshakeConfig {
	return HandshakeConfig{
		Username:           username,
		Password:           password,
		CandidateTimeoutMS: 3000,
		PhaseRetries:       3,
		GlobalBudgetMS:     45000,
		Accept:             EchoAccept,
	}
}

// Handshake drives the three channels through login → connect → ready,
// trying session-identity candidates in priority order until the control
// channel accepts one. It is tick-driven: the owner feeds it elapsed time via
// Clock and inbound frames via HandleFrame, so every timeout is deterministic
// under test. Acceptance is judged only by control-channel frames; the other
// two channels only acknowledge connect/ready.
type Handshake struct {
	cfg      HandshakeConfig
	out      ChannelSet
	resolver *Resolver
	log      zerolog.Logger

	state   HandshakeState
	current Identity
	tried   int
	retries int
	acked   [protocol.RoleCount]bool

	waitTimer   *network.Timer
	globalTimer *network.Timer

	accepted Identity
	err      error
}

// NewHandshake creates a machine in the IDLE state.
func NewHandshake(cfg HandshakeConfig, out ChannelSet, resolver *Resolver, log zerolog.Logger) *Handshake {
	if cfg.Accept == nil {
		cfg.Accept = EchoAccept
	}
	return &Handshake{
		cfg:         cfg,
		out:         out,
		resolver:    resolver,
		log:         log.With().Str("component", "handshake").Logger(),
		state:       HandshakeIdle,
		waitTimer:   network.NewTimer(cfg.CandidateTimeoutMS),
		globalTimer: network.NewTimer(cfg.GlobalBudgetMS),
	}
}

// State returns the current phase.
func (h *Handshake) State() HandshakeState {
	return h.state
}

// Err returns the failure cause once the machine is FAILED.
func (h *Handshake) Err() error {
	return h.err
}

// Accepted returns the accepted identity once the machine is CONNECTED.
func (h *Handshake) Accepted() (Identity, bool) {
	return h.accepted, h.state == HandshakeConnected
}

// CandidatesTried returns how many identity candidates have been sent.
func (h *Handshake) CandidatesTried() int {
	return h.tried
}

// Start sends the login credentials frame on the control channel, immediately
// followed by the first identity candidate. The radio does not acknowledge
// login, so nothing is gained by waiting for one; the exhaustion bound stays
// one candidate timeout per strategy.
func (h *Handshake) Start() error {
	if h.state != HandshakeIdle {
		return fmt.Errorf("handshake already started in state %s", h.state)
	}
	h.resolver.Reset()

	login := &protocol.Frame{
		Command: protocol.CmdLogin,
		Payload: loginPayload(h.cfg.Username, h.cfg.Password),
	}
	if err := h.out.Send(protocol.RoleControl, login); err != nil {
		h.fail(err)
		return h.err
	}
	h.globalTimer.Start(h.cfg.GlobalBudgetMS)
	h.log.Debug().Str("user", h.cfg.Username).Msg("login sent")

	h.nextCandidate()
	if h.state == HandshakeFailed {
		return h.err
	}
	return nil
}

// Cancel aborts the attempt, releasing any pending wait.
func (h *Handshake) Cancel() {
	if h.state != HandshakeConnected && h.state != HandshakeFailed {
		h.fail(ErrCancelled)
	}
}

// Clock advances the machine by ms of elapsed time.
func (h *Handshake) Clock(ms int) {
	switch h.state {
	case HandshakeIdle, HandshakeConnected, HandshakeFailed:
		return
	}

	h.waitTimer.Clock(ms)
	h.globalTimer.Clock(ms)

	if h.globalTimer.Expired() {
		h.fail(fmt.Errorf("global budget of %dms exceeded", h.cfg.GlobalBudgetMS))
		return
	}
	if !h.waitTimer.Expired() {
		return
	}

	switch h.state {
	case HandshakeCandidateTrying:
		h.nextCandidate()
	case HandshakeConnectPending:
		h.retryPhase(protocol.CmdConnect)
	case HandshakeReadyPending:
		h.retryPhase(protocol.CmdReady)
	}
}

// HandleFrame feeds one inbound frame to the machine.
func (h *Handshake) HandleFrame(role protocol.PortRole, f *protocol.Frame) {
	switch h.state {
	case HandshakeIdle, HandshakeConnected, HandshakeFailed:
		return
	}

	if f.Command == protocol.CmdReject {
		h.fail(ErrRejected)
		return
	}

	switch h.state {
	case HandshakeCandidateTrying:
		if role == protocol.RoleControl && h.cfg.Accept(h.current, f) {
			h.accepted = h.current
			h.log.Info().
				Str("strategy", h.current.Tag).
				Uint32("session_a", h.accepted.A).
				Uint32("session_b", h.accepted.B).
				Msg("candidate accepted")
			h.enterConnectPending()
		}
	case HandshakeConnectPending:
		if role != protocol.RoleControl && h.matchesAccepted(f) {
			h.acked[role] = true
			if h.acked[protocol.RoleSerial] && h.acked[protocol.RoleAudio] {
				h.enterReadyPending()
			}
		}
	case HandshakeReadyPending:
		if h.readyAck(f) {
			h.acked[role] = true
			if h.acked[protocol.RoleControl] && h.acked[protocol.RoleSerial] && h.acked[protocol.RoleAudio] {
				h.state = HandshakeConnected
				h.waitTimer.Stop()
				h.globalTimer.Stop()
				h.log.Info().Msg("handshake complete")
			}
		}
	}
}

func (h *Handshake) nextCandidate() {
	id, ok := h.resolver.Next()
	if !ok {
		h.fail(fmt.Errorf("%w after %d candidates", ErrHandshakeExhausted, h.tried))
		return
	}
	h.current = id
	h.tried++
	h.state = HandshakeCandidateTrying

	auth := &protocol.Frame{SessionA: id.A, SessionB: id.B, Command: protocol.CmdAuth}
	if err := h.out.Send(protocol.RoleControl, auth); err != nil {
		h.fail(err)
		return
	}
	h.waitTimer.Start(h.cfg.CandidateTimeoutMS)
	h.log.Debug().Str("strategy", id.Tag).Int("attempt", h.tried).Msg("candidate sent")
}

func (h *Handshake) enterConnectPending() {
	h.state = HandshakeConnectPending
	h.retries = h.cfg.PhaseRetries
	h.acked = [protocol.RoleCount]bool{}
	h.acked[protocol.RoleControl] = true // control already judged acceptance
	h.sendPhase(protocol.CmdConnect)
	h.waitTimer.Start(h.cfg.CandidateTimeoutMS)
}

func (h *Handshake) enterReadyPending() {
	h.state = HandshakeReadyPending
	h.retries = h.cfg.PhaseRetries
	h.acked = [protocol.RoleCount]bool{}
	h.sendPhase(protocol.CmdReady)
	h.waitTimer.Start(h.cfg.CandidateTimeoutMS)
}

// sendPhase transmits a connect or ready frame on every channel that has not
// acknowledged yet. Connect frames are only expected on serial and audio.
func (h *Handshake) sendPhase(command uint8) {
	f := &protocol.Frame{SessionA: h.accepted.A, SessionB: h.accepted.B, Command: command}
	for role := protocol.PortRole(0); role < protocol.RoleCount; role++ {
		if h.acked[role] {
			continue
		}
		if err := h.out.Send(role, f); err != nil {
			h.fail(err)
			return
		}
	}
}

func (h *Handshake) retryPhase(command uint8) {
	h.retries--
	if h.retries < 0 {
		h.fail(fmt.Errorf("no acknowledgment after %d rounds", h.cfg.PhaseRetries))
		return
	}
	h.sendPhase(command)
	h.waitTimer.Start(h.cfg.CandidateTimeoutMS)
}

func (h *Handshake) matchesAccepted(f *protocol.Frame) bool {
	return f.SessionA == h.accepted.A && f.SessionB == h.accepted.B
}

// readyAck accepts an explicit ready echo or, for channels where the protocol
// defines no ready acknowledgment, the first keep-alive-class frame.
func (h *Handshake) readyAck(f *protocol.Frame) bool {
	switch f.Command {
	case protocol.CmdReady, protocol.CmdIdle, protocol.CmdAreYouThere, protocol.CmdIAmHere:
		return true
	default:
		return false
	}
}

func (h *Handshake) fail(cause error) {
	phase := h.state
	h.state = HandshakeFailed
	h.waitTimer.Stop()
	h.globalTimer.Stop()
	h.err = fmt.Errorf("handshake failed in %s (%d candidates tried): %w", phase, h.tried, cause)
	h.log.Warn().Err(cause).Stringer("phase", phase).Int("candidates", h.tried).Msg("handshake failed")
}

func loginPayload(username, password string) []byte {
	payload := make([]byte, 0, len(username)+len(password)+2)
	payload = append(payload, username...)
	payload = append(payload, 0)
	payload = append(payload, password...)
	payload = append(payload, 0)
	return payload
}
