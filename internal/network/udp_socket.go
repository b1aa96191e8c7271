package network

import (
	"fmt"
	"net"
	"time"
)

// UDPSocket is a thin wrapper over a UDP connection with deadline-bounded
// reads. Each channel owns one socket bound to an ephemeral local port.
type UDPSocket struct {
	conn      *net.UDPConn
	localPort int
}

// NewUDPSocket creates an unopened socket. localPort of 0 lets the OS assign
// an ephemeral port.
func NewUDPSocket(localPort int) *UDPSocket {
	return &UDPSocket{localPort: localPort}
}

// Open binds the socket. IPv4 only, matching the radio's network stack.
func (s *UDPSocket) Open() error {
	local := &net.UDPAddr{IP: net.IPv4zero, Port: s.localPort}
	conn, err := net.ListenUDP("udp4", local)
	if err != nil {
		return fmt.Errorf("open udp socket: %w", err)
	}
	s.conn = conn
	return nil
}

// ReadTimeout reads one datagram, waiting at most timeout. It returns 0 bytes
// and a nil error when the deadline passes with no data.
func (s *UDPSocket) ReadTimeout(buffer []byte, timeout time.Duration) (int, *net.UDPAddr, error) {
	if s.conn == nil {
		return 0, nil, fmt.Errorf("socket not open")
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, err
	}
	n, addr, err := s.conn.ReadFromUDP(buffer)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return 0, nil, nil
		}
		return 0, nil, err
	}
	return n, addr, nil
}

// Write sends one datagram to addr.
func (s *UDPSocket) Write(buffer []byte, addr *net.UDPAddr) error {
	if s.conn == nil {
		return fmt.Errorf("socket not open")
	}
	_, err := s.conn.WriteToUDP(buffer, addr)
	return err
}

// LocalAddr returns the bound address, or nil before Open.
func (s *UDPSocket) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Close releases the socket. The conn pointer is left in place so a read
// blocked in another goroutine fails with a closed-connection error instead
// of racing a nil assignment. Safe to call twice.
func (s *UDPSocket) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

// Lookup resolves a hostname or dotted quad to an IPv4 address.
func Lookup(hostname string) (net.IP, error) {
	if ip := net.ParseIP(hostname); ip != nil {
		return ip, nil
	}
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip, nil
		}
	}
	return nil, fmt.Errorf("no IPv4 address found for %s", hostname)
}
