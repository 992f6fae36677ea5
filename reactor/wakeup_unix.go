//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// wakePipe is a non-blocking self-pipe. Writing one byte makes the read end
// readable, which interrupts a blocked wait.
type wakePipe struct {
	r, w int
}

func newWakePipe() (wakePipe, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return wakePipe{}, fmt.Errorf("wake pipe: %w", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(p[0])
			_ = unix.Close(p[1])
			return wakePipe{}, fmt.Errorf("wake pipe nonblock: %w", err)
		}
	}
	return wakePipe{r: p[0], w: p[1]}, nil
}

func (w wakePipe) signal() error {
	_, err := unix.Write(w.w, []byte{1})
	if err != nil && !errors.Is(err, unix.EAGAIN) {
		return fmt.Errorf("wake: %w", err)
	}
	return nil
}

// drain empties the pipe so the next wait blocks again.
func (w wakePipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w wakePipe) close() error {
	return errors.Join(unix.Close(w.r), unix.Close(w.w))
}
