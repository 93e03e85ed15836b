package core

import (
	"crypto/tls"
	"log"

	"golang.org/x/sys/unix"

	"github.com/searchktools/staticd/core/poller"
	"github.com/searchktools/staticd/core/transport"
)

// Listener owns a Poller watching exactly one descriptor: a bound server
// socket. On a READ event it drains the accept queue, handing each new
// connection to a Worker via round-robin; when the Manager is exhausted it
// accepts and immediately closes the socket (shed load) rather than
// refusing the SYN.
type Listener struct {
	name    string
	fd      int
	cfg     transport.ListenConfig
	tlsConf *tls.Config
	p       poller.Poller
	manager *Manager
	workers []*Worker
	cursor  int
}

// NewListener binds cfg's address/port and constructs the Listener's
// Poller. tlsConf is nil for a plain HTTP listener.
func NewListener(name string, cfg transport.ListenConfig, tlsConf *tls.Config, manager *Manager, workers []*Worker) (*Listener, error) {
	fd, err := transport.Listen(cfg)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		name:    name,
		fd:      fd,
		cfg:     cfg,
		tlsConf: tlsConf,
		manager: manager,
		workers: workers,
	}

	p, err := poller.New(poller.Config{
		Capacity: 1,
		OnEvent:  l.onEvent,
		OnStop: func(poller.Poller) {
			log.Printf("listener %s: poller stopped", name)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := p.Setup(); err != nil {
		return nil, err
	}
	if err := p.Add(fd, poller.Read, nil); err != nil {
		return nil, err
	}
	l.p = p
	return l, nil
}

// Start begins the Listener's accept loop on its own goroutine.
func (l *Listener) Start() error {
	log.Printf("listener %s: accepting on fd %d", l.name, l.fd)
	return l.p.Run()
}

// Stop closes the server socket; in-flight connections continue being
// served by the Workers.
func (l *Listener) Stop() {
	l.p.Stop()
	l.p.Wait()
	l.p.Cleanup()
	unix.Close(l.fd) //nolint:errcheck
}

func (l *Listener) onEvent(p poller.Poller, code poller.Code, _ any) {
	if !code.Has(poller.Read) {
		return
	}

	for {
		fd, accepted, err := transport.Accept(l.fd)
		if err != nil {
			log.Printf("listener %s: accept error: %v", l.name, err)
			return
		}
		if !accepted {
			break
		}

		if err := transport.Tune(fd, l.cfg); err != nil {
			log.Printf("listener %s: tune: %v", l.name, err)
		}

		conn := transport.NewConnection(fd, l.tlsConf)
		job, _, ok := l.manager.Acquire(conn, nil)
		if !ok {
			// Resource-exhausted per spec.md §7: shed load by accepting
			// then immediately closing rather than leaving the SYN queue
			// to back up.
			conn.Close()
			continue
		}

		l.assignRoundRobin(job)
	}
}

// assignRoundRobin hands job to the next Worker, advancing the cursor
// whether or not assign succeeds; a failed assign (Worker at capacity) is
// retried against the next Worker in the same accept iteration.
func (l *Listener) assignRoundRobin(job *Job) {
	n := len(l.workers)
	for i := 0; i < n; i++ {
		w := l.workers[l.cursor]
		l.cursor = (l.cursor + 1) % n
		if err := w.Assign(job); err == nil {
			return
		}
	}
	// Every worker rejected the job (all at capacity): release it back.
	job.Conn.Close()
	l.manager.Release(job.Handle)
}
