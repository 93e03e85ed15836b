/*
Package staticd serves a directory tree over HTTP/1.1, optionally TLS,
through a thread-per-Poller, edge-triggered engine: one goroutine per
Listener accepting connections, one goroutine per Worker driving reads and
writes, with Jobs allocated from a fixed-capacity object pool rather than
the heap on the hot path.

Quick start

	package main

	import (
	    "log"
	    "os"

	    "github.com/searchktools/staticd/app"
	    "github.com/searchktools/staticd/config"
	)

	func main() {
	    cfg, err := config.New(os.Args[1:])
	    if err != nil {
	        log.Fatal(err)
	    }
	    if err := app.New(cfg, config.NewManager()).Run(); err != nil {
	        log.Fatal(err)
	    }
	}

Modules

  - app: process supervisor — owns the Manager/Workers/Listeners, handles shutdown
  - config: CLI flag parsing plus a runtime-tunable settings store
  - core: Job/Manager/Worker/Listener lifecycle and request dispatch
  - core/poller: epoll/kqueue/event-ports/poll backends behind one interface
  - core/transport: non-blocking socket, TLS handshake progression, send-file
  - core/httpmsg: zero-copy request parser, path resolution, response builder
  - core/objpool: fixed-capacity handle-based slot allocator
  - core/hashmap: FNV-1a descriptor map backing the generic poll backend
  - core/mime: extension-to-content-type lookup
*/
package staticd
