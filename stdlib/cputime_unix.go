//go:build unix

package stdlib

import (
	"golang.org/x/sys/unix"
)

// cpuSeconds returns the process CPU time in seconds: user plus system
// time of the calling process.
func cpuSeconds() float64 {
	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		return 0
	}
	user := float64(usage.Utime.Sec) + float64(usage.Utime.Usec)/1e6
	sys := float64(usage.Stime.Sec) + float64(usage.Stime.Usec)/1e6
	return user + sys
}
