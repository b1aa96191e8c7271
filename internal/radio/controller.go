// Package radio wires the session layer to real UDP channels and exposes the
// controller surface consumed by the CLI: connect, submit, disconnect, and
// the IC-9700 operations built on top of the command exchange.
package radio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/n4ldr/smcontrol/internal/capture"
	"github.com/n4ldr/smcontrol/internal/config"
	"github.com/n4ldr/smcontrol/internal/network"
	"github.com/n4ldr/smcontrol/internal/protocol"
	"github.com/n4ldr/smcontrol/internal/session"
)

const (
	handshakeTickInterval = 20 * time.Millisecond
	keeperTickInterval    = 100 * time.Millisecond
	receiveWindow         = 200 * time.Millisecond
)

// Controller owns the three channels and the session built over them. One
// controller manages at most one session at a time; after the session is
// lost, the caller decides whether to Connect again.
type Controller struct {
	cfg      config.Config
	log      zerolog.Logger
	captures *capture.Repository // nil when capture is disabled
	notify   func(protocol.Command)

	mu       sync.Mutex
	channels [protocol.RoleCount]*network.Channel
	sess     *session.Session
	exchange *session.Exchange
	keeper   *session.Keeper
	stop     context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// NewController creates a disconnected controller. captures may be nil;
// notify, when non-nil, receives unsolicited broadcast records.
func NewController(cfg config.Config, captures *capture.Repository, notify func(protocol.Command), log zerolog.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		log:      log.With().Str("component", "controller").Logger(),
		captures: captures,
		notify:   notify,
	}
}

// channelSet adapts the controller's channels to the session layer.
type channelSet struct {
	channels *[protocol.RoleCount]*network.Channel
}

func (s channelSet) Send(role protocol.PortRole, f *protocol.Frame) error {
	return s.channels[role].Send(f)
}

// Connect opens the channels, runs the handshake to completion, and starts
// the keep-alive and receive machinery. It blocks until the session is
// established, the handshake fails, or ctx is cancelled.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("already connected")
	}

	if err := c.openChannels(); err != nil {
		return err
	}

	hs := session.NewHandshake(c.handshakeConfig(), channelSet{&c.channels}, session.NewResolver(c.seed(), nil), c.log)
	if err := hs.Start(); err != nil {
		c.closeChannels()
		return err
	}
	if err := c.runHandshake(ctx, hs); err != nil {
		c.closeChannels()
		return err
	}

	id, _ := hs.Accepted()
	c.sess = session.NewSession(id, time.Now())
	c.exchange = session.NewExchange(channelSet{&c.channels}, c.sess, c.notify, c.log)
	c.keeper = session.NewKeeper(c.keeperConfig(), channelSet{&c.channels}, c.sess,
		func() { c.exchange.FailAll(session.ErrConnectionLost) }, c.log, nil)

	if c.captures != nil {
		if err := c.captures.Record(c.cfg.Radio.Address, id); err != nil {
			c.log.Warn().Err(err).Msg("failed to record accepted session pair")
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	for role := protocol.PortRole(0); role < protocol.RoleCount; role++ {
		c.wg.Add(1)
		go c.receiveLoop(runCtx, role)
	}
	c.wg.Add(1)
	go c.keeperLoop(runCtx)

	c.running = true
	c.log.Info().
		Str("strategy", id.Tag).
		Uint32("session_a", id.A).
		Uint32("session_b", id.B).
		Msg("session established")
	return nil
}

// runHandshake drives the tick-driven machine against the live channels.
func (c *Controller) runHandshake(ctx context.Context, hs *session.Handshake) error {
	ticker := time.NewTicker(handshakeTickInterval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			hs.Cancel()
			return hs.Err()
		case now := <-ticker.C:
			for role := protocol.PortRole(0); role < protocol.RoleCount; role++ {
				c.drainChannel(role, hs)
			}
			hs.Clock(int(now.Sub(last).Milliseconds()))
			last = now

			switch hs.State() {
			case session.HandshakeConnected:
				return nil
			case session.HandshakeFailed:
				return hs.Err()
			}
		}
	}
}

func (c *Controller) drainChannel(role protocol.PortRole, hs *session.Handshake) {
	for {
		f, err := c.channels[role].TryReceive(0)
		if errors.Is(err, network.ErrReceiveTimeout) {
			return
		}
		if err != nil {
			c.log.Warn().Err(err).Stringer("channel", role).Msg("receive error during handshake")
			return
		}
		hs.HandleFrame(role, &f)
	}
}

func (c *Controller) receiveLoop(ctx context.Context, role protocol.PortRole) {
	defer c.wg.Done()
	ch := c.channels[role]
	for {
		if ctx.Err() != nil {
			return
		}
		f, err := ch.TryReceive(receiveWindow)
		if errors.Is(err, network.ErrReceiveTimeout) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return // socket closed by Disconnect
			}
			c.log.Warn().Err(err).Stringer("channel", role).Msg("receive error")
			continue
		}
		c.keeper.HandleFrame(role, &f)
		c.exchange.HandleFrame(role, &f)
	}
}

func (c *Controller) keeperLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(keeperTickInterval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.keeper.Clock(int(now.Sub(last).Milliseconds()))
			last = now
		}
	}
}

// Submit sends one CI-V command and waits for the correlated response.
func (c *Controller) Submit(ctx context.Context, cmd protocol.Command, timeout time.Duration) (protocol.Command, error) {
	c.mu.Lock()
	exchange := c.exchange
	c.mu.Unlock()
	if exchange == nil {
		return protocol.Command{}, session.ErrNotConnected
	}
	return exchange.Submit(ctx, cmd, timeout)
}

// SessionState reports the session lifecycle state.
func (c *Controller) SessionState() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return session.StateDisconnected
	}
	return c.sess.State()
}

// Disconnect tells the radio the session is over, stops the background
// machinery and closes the channels. Safe to call when not connected.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}

	if c.sess.State() != session.StateLost {
		bye := c.sess.Frame(protocol.CmdDisconnect, nil)
		if err := c.channels[protocol.RoleControl].Send(bye); err != nil {
			c.log.Debug().Err(err).Msg("disconnect frame send failed")
		}
	}

	c.stop()
	c.closeChannels() // unblocks receive loops waiting on sockets
	c.wg.Wait()
	c.exchange.FailAll(session.ErrConnectionLost)
	c.sess.SetState(session.StateDisconnected)
	c.running = false
	c.log.Info().Msg("disconnected")
}

func (c *Controller) openChannels() error {
	ip, err := network.Lookup(c.cfg.Radio.Address)
	if err != nil {
		return fmt.Errorf("resolve radio address: %w", err)
	}
	ports := map[protocol.PortRole]int{
		protocol.RoleControl: c.cfg.Radio.ControlPort,
		protocol.RoleSerial:  c.cfg.Radio.SerialPort,
		protocol.RoleAudio:   c.cfg.Radio.AudioPort,
	}
	for role, port := range ports {
		ch := network.NewChannel(role, &net.UDPAddr{IP: ip, Port: port}, c.log)
		if err := ch.Open(); err != nil {
			c.closeChannels()
			return err
		}
		c.channels[role] = ch
	}
	return nil
}

func (c *Controller) closeChannels() {
	for _, ch := range c.channels {
		if ch != nil {
			ch.Close()
		}
	}
}

func (c *Controller) handshakeConfig() session.HandshakeConfig {
	return session.HandshakeConfig{
		Username:           c.cfg.Login.Username,
		Password:           c.cfg.Login.Password,
		CandidateTimeoutMS: c.cfg.Session.CandidateTimeoutMS,
		PhaseRetries:       c.cfg.Session.PhaseRetries,
		GlobalBudgetMS:     c.cfg.Session.GlobalBudgetMS,
		Accept:             session.EchoAccept,
	}
}

func (c *Controller) keeperConfig() session.KeeperConfig {
	return session.KeeperConfig{
		IdleIntervalMS: c.cfg.Session.IdleIntervalMS,
		DeadChannelMS:  c.cfg.Session.DeadChannelMS,
	}
}

func (c *Controller) seed() session.Seed {
	if c.captures == nil {
		return session.Seed{}
	}
	seed, err := c.captures.Seed(c.cfg.Radio.Address)
	if err != nil {
		c.log.Warn().Err(err).Msg("capture seed lookup failed, starting from time-derived candidates")
		return session.Seed{}
	}
	return seed
}
