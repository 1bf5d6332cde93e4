package core

import (
	"io"
	"net"
	"time"
)

// lingerListener hands out connections whose Close lingers before the
// final close. It sits under any other listener wrapper so that their
// Close methods end up here.
type lingerListener struct {
	net.Listener
}

func (l lingerListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		return &lingerConn{TCPConn: tc}, nil
	}
	return conn, nil
}

// lingerConn half-closes, discards whatever the peer still sends for a
// short while, then closes. Closing with unread input makes the kernel
// reset the connection, which can destroy the response in flight.
type lingerConn struct {
	*net.TCPConn
}

func (c *lingerConn) Close() error {
	if c.TCPConn.CloseWrite() == nil {
		c.TCPConn.SetReadDeadline(time.Now().Add(lingerTimeout))
		io.Copy(io.Discard, io.LimitReader(c.TCPConn, maxLingerBytes))
	}
	return c.TCPConn.Close()
}
