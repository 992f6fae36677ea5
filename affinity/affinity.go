// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for pinning the event loop's OS thread to one CPU.
// Platform-specific implementations live in build-tagged files.

package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-sql/api"
)

// Pin locks the calling goroutine to its OS thread and restricts that
// thread to cpuID. The returned release func restores the previous CPU set
// and unlocks the thread; it is non-nil even when err != nil so callers can
// always defer it.
func Pin(cpuID int) (release func(), err error) {
	if cpuID < 0 {
		return func() {}, fmt.Errorf("affinity: cpu %d: %w", cpuID, api.ErrInvalidArgument)
	}
	runtime.LockOSThread()
	restore, err := setAffinityPlatform(cpuID)
	if err != nil {
		runtime.UnlockOSThread()
		return func() {}, err
	}
	return func() {
		restore()
		runtime.UnlockOSThread()
	}, nil
}
