//go:build !darwin && !linux
// +build !darwin,!linux

package nettools

import "syscall"

func pollAlive(syscall.RawConn) bool {
	return true
}
