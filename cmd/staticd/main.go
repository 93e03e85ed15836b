// Command staticd serves a document root over HTTP/1.1 (and optionally
// HTTPS) using an edge-triggered, thread-per-Poller engine.
package main

import (
	"errors"
	"log"
	"os"
	"syscall"

	"github.com/searchktools/staticd/app"
	"github.com/searchktools/staticd/config"
)

func main() {
	cfg, err := config.New(os.Args[1:])
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			os.Exit(0)
		}
		log.Printf("staticd: %v", err)
		os.Exit(exitCode(err))
	}

	settings := config.NewManager()
	supervisor := app.New(cfg, settings)

	if err := supervisor.Run(); err != nil {
		log.Printf("staticd: %v", err)
		os.Exit(exitCode(err))
	}
}

// exitCode unwraps err down to the syscall errno that caused it, so the
// process exits with that errno rather than an opaque constant. Falls
// back to 1 when err carries no errno (e.g. a flag-validation failure
// with no underlying syscall).
func exitCode(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 1
}
