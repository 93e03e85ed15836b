//go:build solaris || illumos

package poller

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// eventPortPoller is the Solaris/illumos backend. Event ports only
// simulate edge-triggering: the OS auto-dissociates a descriptor the
// moment its event fires, so every delivered event must be re-associated
// (re-armed) before the next Wait, or the descriptor silently stops being
// watched.
type eventPortPoller struct {
	cfg Config

	port int

	mu       sync.Mutex
	registry map[int]Code // fd -> last-registered mask, needed to re-arm
	userData map[int]any
	count    int

	stop   atomic.Bool
	done   chan struct{}
	events []unix.PortEvent
}

// New constructs the platform-selected backend. On Solaris/illumos this is
// event ports.
func New(cfg Config) (Poller, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	return &eventPortPoller{
		cfg:      cfg,
		registry: make(map[int]Code, cfg.Capacity),
		userData: make(map[int]any, cfg.Capacity),
		done:     make(chan struct{}),
		events:   make([]unix.PortEvent, cfg.Capacity),
	}, nil
}

func (p *eventPortPoller) Setup() error {
	port, err := unix.PortCreate()
	if err != nil {
		return err
	}
	p.port = port
	return nil
}

func code2poll(mask Code) int {
	var events int
	if mask.Has(Read) {
		events |= unix.POLLIN
	}
	if mask.Has(Write) {
		events |= unix.POLLOUT
	}
	return events
}

func poll2code(events int32) Code {
	var c Code
	if events&unix.POLLIN != 0 {
		c |= Read
	}
	if events&unix.POLLOUT != 0 {
		c |= Write
	}
	if events&unix.POLLHUP != 0 {
		c |= Close
	}
	if events&unix.POLLERR != 0 {
		c |= Error
	}
	return c
}

func (p *eventPortPoller) associate(fd int, mask Code) error {
	return unix.PortAssociate(p.port, unix.PORT_SOURCE_FD, fd, code2poll(mask), nil)
}

func (p *eventPortPoller) Add(fd int, mask Code, userData any) error {
	p.mu.Lock()
	if p.count >= p.cfg.Capacity {
		p.mu.Unlock()
		return ErrCapacity
	}
	p.registry[fd] = mask
	p.userData[fd] = userData
	p.count++
	p.mu.Unlock()

	if err := p.associate(fd, mask); err != nil {
		p.mu.Lock()
		delete(p.registry, fd)
		delete(p.userData, fd)
		p.count--
		p.mu.Unlock()
		return err
	}
	return nil
}

// Modify realizes event ports' interest-adjustment policy: always
// re-associate with the new mask, since associations are one-shot by
// nature on this backend — there is no in-place modify distinct from
// re-arming.
func (p *eventPortPoller) Modify(fd int, mask Code, userData any) error {
	p.mu.Lock()
	if _, ok := p.registry[fd]; !ok {
		p.mu.Unlock()
		return unix.ENOENT
	}
	p.registry[fd] = mask
	p.userData[fd] = userData
	p.mu.Unlock()

	return p.associate(fd, mask)
}

func (p *eventPortPoller) Remove(fd int, _ Code) error {
	p.mu.Lock()
	delete(p.registry, fd)
	delete(p.userData, fd)
	p.count--
	p.mu.Unlock()

	return unix.PortDissociate(p.port, unix.PORT_SOURCE_FD, fd)
}

func (p *eventPortPoller) Run() error {
	go p.loop()
	return nil
}

func (p *eventPortPoller) loop() {
	defer close(p.done)
	defer func() {
		if p.cfg.OnStop != nil {
			p.cfg.OnStop(p)
		}
	}()

	if p.cfg.OnEvent == nil {
		return
	}

	for {
		if p.stop.Load() {
			return
		}

		n, err := unix.PortGetn(p.port, p.events, 1, timespecSec(1))
		if err != nil {
			if err == unix.EINTR || err == unix.ETIME {
				continue
			}
			return
		}

		for i := 0; i < n; i++ {
			fd := int(p.events[i].Fd)

			p.mu.Lock()
			mask, ok := p.registry[fd]
			ud := p.userData[fd]
			p.mu.Unlock()
			if !ok {
				continue
			}

			// Mandatory re-arm: the association was consumed by this
			// delivery, so re-associate before invoking the callback.
			p.associate(fd, mask)

			p.cfg.OnEvent(p, poll2code(p.events[i].Events), ud)
		}
	}
}

func (p *eventPortPoller) Stop() { p.stop.Store(true) }

func (p *eventPortPoller) Wait() { <-p.done }

func (p *eventPortPoller) Cleanup() {
	unix.Close(p.port)
}
