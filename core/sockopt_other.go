//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package core

import "syscall"

func listenControl(reusePort bool) (func(network, address string, c syscall.RawConn) error, error) {
	if reusePort {
		return nil, ErrReusePortUnsupported
	}
	return nil, nil
}
