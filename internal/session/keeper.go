package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/n4ldr/smcontrol/internal/network"
	"github.com/n4ldr/smcontrol/internal/protocol"
)

// KeeperConfig bounds the keep-alive discipline.
type KeeperConfig struct {
	IdleIntervalMS int // cadence of outbound keep-alive frames
	DeadChannelMS  int // inbound silence before a channel counts as dead
}

// DefaultKeeperConfig matches the cadence the radio tolerates: the session
// drops silently somewhere past 20s without traffic.
func DefaultKeeperConfig() KeeperConfig {
	return KeeperConfig{
		IdleIntervalMS: 3000,
		DeadChannelMS:  15000,
	}
}

// Keeper maintains an established session: it sends periodic idle frames on
// all three channels, answers the radio's liveness probes on the channel they
// arrived on, and downgrades the session when channels go silent. One silent
// channel degrades the session; silence on all three loses it. The keeper
// never reconnects, that decision belongs to whoever observes LOST.
type Keeper struct {
	cfg   KeeperConfig
	out   ChannelSet
	sess  *Session
	log   zerolog.Logger
	clock func() time.Time

	mu        sync.Mutex
	idleTimer *network.Timer
	onLost    func()
	lostFired bool
}

// NewKeeper creates a keeper for an established session. onLost fires exactly
// once, when all channels have gone silent; the controller uses it to fail
// pending command exchanges. clock is injectable for tests.
func NewKeeper(cfg KeeperConfig, out ChannelSet, sess *Session, onLost func(), log zerolog.Logger, clock func() time.Time) *Keeper {
	if clock == nil {
		clock = time.Now
	}
	k := &Keeper{
		cfg:       cfg,
		out:       out,
		sess:      sess,
		log:       log.With().Str("component", "keeper").Logger(),
		clock:     clock,
		idleTimer: network.NewTimer(cfg.IdleIntervalMS),
		onLost:    onLost,
	}
	k.idleTimer.Start(cfg.IdleIntervalMS)
	return k
}

// Clock advances the keeper by ms of elapsed time.
func (k *Keeper) Clock(ms int) {
	k.mu.Lock()
	defer k.mu.Unlock()

	state := k.sess.State()
	if state == StateLost || state == StateDisconnected {
		return
	}

	silences := k.sess.AdvanceSilence(int64(ms))

	k.idleTimer.Clock(ms)
	if k.idleTimer.Expired() {
		idle := k.sess.Frame(protocol.CmdIdle, nil)
		for role := protocol.PortRole(0); role < protocol.RoleCount; role++ {
			if err := k.out.Send(role, idle); err != nil {
				k.log.Warn().Err(err).Stringer("channel", role).Msg("keep-alive send failed")
			}
		}
		k.idleTimer.Start(k.cfg.IdleIntervalMS)
	}

	dead := 0
	for role, silence := range silences {
		if silence >= int64(k.cfg.DeadChannelMS) {
			dead++
			k.log.Debug().Stringer("channel", protocol.PortRole(role)).Int64("silence_ms", silence).Msg("channel silent")
		}
	}

	switch {
	case dead == protocol.RoleCount:
		k.sess.SetState(StateLost)
		k.log.Warn().Msg("all channels silent, session lost")
		if k.onLost != nil && !k.lostFired {
			k.lostFired = true
			k.onLost()
		}
	case dead > 0:
		k.sess.SetState(StateDegraded)
	default:
		k.sess.SetState(StateConnected)
	}
}

// HandleFrame records inbound activity and answers liveness probes on the
// channel they arrived on.
func (k *Keeper) HandleFrame(role protocol.PortRole, f *protocol.Frame) {
	k.sess.Touch(role, k.clock())

	if f.Command == protocol.CmdAreYouThere {
		reply := k.sess.Frame(protocol.CmdIAmHere, nil)
		if err := k.out.Send(role, reply); err != nil {
			k.log.Warn().Err(err).Stringer("channel", role).Msg("probe reply failed")
		}
	}
}
