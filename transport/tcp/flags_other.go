//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package tcp

const sendFlags = 0
