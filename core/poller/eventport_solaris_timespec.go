//go:build solaris || illumos

package poller

import "golang.org/x/sys/unix"

func timespecSec(sec int64) *unix.Timespec {
	return &unix.Timespec{Sec: sec, Nsec: 0}
}
