//go:build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-sql/api"
)

func setAffinityPlatform(int) (func(), error) {
	return nil, fmt.Errorf("affinity: %w", api.ErrNotSupported)
}

// Current is not available on this platform.
func Current() ([]int, error) {
	return nil, fmt.Errorf("affinity: %w", api.ErrNotSupported)
}
