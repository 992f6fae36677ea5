//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"fmt"
	"net"

	"github.com/momentics/hioload-sql/api"
	"golang.org/x/sys/unix"
)

// bindSockaddr picks the address family for a bind address. A missing or
// unspecified IPv4 host binds 0.0.0.0.
func bindSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr, error) {
	if addr.Port < 0 || addr.Port > 0xffff {
		return 0, nil, fmt.Errorf("tcp port %d: %w", addr.Port, api.ErrInvalidArgument)
	}
	if addr.IP == nil || addr.IP.To4() != nil {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		if ip4 := addr.IP.To4(); ip4 != nil {
			copy(sa.Addr[:], ip4)
		}
		return unix.AF_INET, sa, nil
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	return unix.AF_INET6, sa, nil
}

func sockaddrToTCP(sa unix.Sockaddr) *net.TCPAddr {
	switch s := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(s.Addr[0], s.Addr[1], s.Addr[2], s.Addr[3]), Port: s.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, s.Addr[:])
		return &net.TCPAddr{IP: ip, Port: s.Port}
	default:
		return &net.TCPAddr{}
	}
}
