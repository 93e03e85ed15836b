//go:build linux

package poller

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// epollPoller is the Linux backend. EPOLLET makes every registration
// edge-triggered natively; no re-arm is needed after a delivered event —
// the caller only needs to drain to EAGAIN per spec.md's edge-triggered
// discipline.
type epollPoller struct {
	cfg Config

	epfd int

	mu       sync.Mutex
	registry map[int]any // fd -> userData, for event dispatch
	count    int

	stop   atomic.Bool
	done   chan struct{}
	events []unix.EpollEvent
}

// New constructs the platform-selected backend. On Linux this is epoll.
func New(cfg Config) (Poller, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	return &epollPoller{
		cfg:      cfg,
		registry: make(map[int]any, cfg.Capacity),
		done:     make(chan struct{}),
		events:   make([]unix.EpollEvent, cfg.Capacity),
	}, nil
}

func (p *epollPoller) Setup() error {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = fd
	return nil
}

func code2epoll(mask Code) uint32 {
	var ev uint32
	if mask.Has(Read) {
		ev |= unix.EPOLLIN
	}
	if mask.Has(Write) {
		ev |= unix.EPOLLOUT
	}
	if mask.Has(EdgeTriggered) {
		ev |= unix.EPOLLET
	}
	return ev
}

func epoll2code(ev uint32) Code {
	var c Code
	if ev&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		c |= Read
	}
	if ev&unix.EPOLLOUT != 0 {
		c |= Write
	}
	if ev&unix.EPOLLHUP != 0 {
		c |= Close
	}
	if ev&unix.EPOLLERR != 0 {
		c |= Error
	}
	return c
}

func (p *epollPoller) Add(fd int, mask Code, userData any) error {
	p.mu.Lock()
	if p.count >= p.cfg.Capacity {
		p.mu.Unlock()
		return ErrCapacity
	}
	p.registry[fd] = userData
	p.count++
	p.mu.Unlock()

	ev := unix.EpollEvent{Events: code2epoll(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		p.mu.Lock()
		delete(p.registry, fd)
		p.count--
		p.mu.Unlock()
		return err
	}
	return nil
}

// Modify realizes the interest-adjustment policy for epoll: modify the
// existing registration in place.
func (p *epollPoller) Modify(fd int, mask Code, userData any) error {
	p.mu.Lock()
	if _, ok := p.registry[fd]; !ok {
		p.mu.Unlock()
		return unix.ENOENT
	}
	p.registry[fd] = userData
	p.mu.Unlock()

	ev := unix.EpollEvent{Events: code2epoll(mask), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Remove(fd int, _ Code) error {
	p.mu.Lock()
	delete(p.registry, fd)
	p.count--
	p.mu.Unlock()

	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Run() error {
	go p.loop()
	return nil
}

func (p *epollPoller) loop() {
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

		n, err := unix.EpollWait(p.epfd, p.events, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		for i := 0; i < n; i++ {
			fd := int(p.events[i].Fd)

			p.mu.Lock()
			userData, ok := p.registry[fd]
			p.mu.Unlock()
			if !ok {
				continue
			}

			p.cfg.OnEvent(p, epoll2code(p.events[i].Events), userData)
		}
	}
}

func (p *epollPoller) Stop() { p.stop.Store(true) }

func (p *epollPoller) Wait() { <-p.done }

func (p *epollPoller) Cleanup() {
	unix.Close(p.epfd)
}
