//go:build darwin || linux
// +build darwin linux

package nettools

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func pollAlive(rc syscall.RawConn) bool {
	alive := true
	// Control reports an error only before running the callback, e.g. on
	// an already closed descriptor.
	if err := rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 0)
		if err != nil || n == 0 {
			return
		}
		if fds[0].Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR|unix.POLLNVAL) != 0 {
			alive = false
		}
	}); err != nil {
		return false
	}
	return alive
}
