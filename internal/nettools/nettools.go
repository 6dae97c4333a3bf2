// Package nettools inspects pooled connections without reading from them.
package nettools

import (
	"crypto/tls"
	"net"
	"syscall"
)

// Alive reports whether an idle connection may be reused: the peer has not
// closed it and no unsolicited bytes are waiting. Connections without a
// pollable descriptor are assumed alive, and so are TLS connections, whose
// peers may send records (session tickets) nobody asked for.
func Alive(c net.Conn) bool {
	if _, ok := c.(*tls.Conn); ok {
		return true
	}
	rc := rawConn(c)
	if rc == nil {
		return true
	}
	return pollAlive(rc)
}

func rawConn(raw net.Conn) syscall.RawConn {
	if c, ok := raw.(syscall.Conn); ok {
		if c, err := c.SyscallConn(); err == nil {
			return c
		}
	}
	return nil
}
