package network

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/n4ldr/smcontrol/internal/protocol"
)

// ErrReceiveTimeout marks a receive window that closed with no frame. It is
// an expected condition, not a transport failure.
var ErrReceiveTimeout = errors.New("receive timeout")

// Channel is one of the three UDP transports to the radio. It frames and
// deframes envelopes at the socket boundary and tracks its own activity
// timestamps; everything above it deals in decoded frames.
type Channel struct {
	role   protocol.PortRole
	socket *UDPSocket
	remote *net.UDPAddr
	log    zerolog.Logger

	lastSent     atomic.Int64 // unix nanos
	lastReceived atomic.Int64

	buffer []byte
}

// NewChannel creates an unopened channel to remote for the given role.
func NewChannel(role protocol.PortRole, remote *net.UDPAddr, log zerolog.Logger) *Channel {
	return &Channel{
		role:   role,
		socket: NewUDPSocket(0),
		remote: remote,
		log:    log.With().Str("channel", role.String()).Logger(),
		buffer: make([]byte, protocol.FrameMaxLength+1),
	}
}

// Open binds the local socket.
func (c *Channel) Open() error {
	if err := c.socket.Open(); err != nil {
		return fmt.Errorf("%s channel: %w", c.role, err)
	}
	c.log.Debug().Stringer("local", c.socket.LocalAddr()).Stringer("remote", c.remote).Msg("channel open")
	return nil
}

// Role returns the channel's port role.
func (c *Channel) Role() protocol.PortRole {
	return c.role
}

// Send encodes and transmits one frame.
func (c *Channel) Send(f *protocol.Frame) error {
	if err := c.socket.Write(f.Encode(), c.remote); err != nil {
		return fmt.Errorf("%s channel send: %w", c.role, err)
	}
	c.lastSent.Store(time.Now().UnixNano())
	return nil
}

// TryReceive waits up to timeout for the next decodable frame. Datagrams from
// other sources and malformed datagrams are dropped without consuming the
// remaining window; decode errors never propagate past this boundary.
func (c *Channel) TryReceive(timeout time.Duration) (protocol.Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		n, from, err := c.socket.ReadTimeout(c.buffer, remaining)
		if err != nil {
			return protocol.Frame{}, fmt.Errorf("%s channel receive: %w", c.role, err)
		}
		if n == 0 {
			return protocol.Frame{}, ErrReceiveTimeout
		}
		if !from.IP.Equal(c.remote.IP) {
			c.log.Debug().Stringer("from", from).Msg("dropping datagram from unexpected source")
			continue
		}

		frame, err := protocol.DecodeFrame(c.buffer[:n])
		if err != nil {
			c.log.Debug().Err(err).Int("bytes", n).Msg("dropping undecodable datagram")
			continue
		}
		c.lastReceived.Store(time.Now().UnixNano())
		return frame, nil
	}
}

// LastSent returns the time of the last successful send.
func (c *Channel) LastSent() time.Time {
	return time.Unix(0, c.lastSent.Load())
}

// LastReceived returns the time of the last decoded inbound frame.
func (c *Channel) LastReceived() time.Time {
	return time.Unix(0, c.lastReceived.Load())
}

// Close releases the channel's socket.
func (c *Channel) Close() {
	c.socket.Close()
}
