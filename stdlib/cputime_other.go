//go:build !unix

package stdlib

import (
	"time"
)

var processStart = time.Now()

// cpuSeconds falls back to wall-clock seconds since process start on
// platforms without rusage.
func cpuSeconds() float64 {
	return time.Since(processStart).Seconds()
}
