package transport

import (
	"fmt"
	"io"
	"net"
)

type udpConn interface {
	io.Writer
	io.Closer
}

type (
	resolveUDPFunc func(network, address string) (*net.UDPAddr, error)
	dialUDPFunc    func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)
)

// UDPSink sends one datagram per sentence, the way chart plotters and
// OpenCPN expect NMEA over a network.
type UDPSink struct {
	dest string
	conn udpConn
}

// NewUDP dials dest (host:port). Broadcast addresses work as long as the
// interface allows it.
func NewUDP(dest string) (*UDPSink, error) {
	return newUDP(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newUDP(dest string, resolve resolveUDPFunc, dial dialUDPFunc) (*UDPSink, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("udp: resolve %s: %w", dest, err)
	}
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("udp: dial %s: %w", dest, err)
	}
	return &UDPSink{dest: dest, conn: conn}, nil
}

func (u *UDPSink) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return u.conn.Write(p)
}

func (u *UDPSink) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}
