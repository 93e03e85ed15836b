//go:build unix && !linux && !darwin && !freebsd && !dragonfly && !netbsd && !openbsd && !solaris && !illumos

package poller

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/searchktools/staticd/core/hashmap"
)

// fdSlot is the value stored in the descriptor hash map: the index of the
// corresponding entry in the pollfd array plus the caller's opaque
// pointer.
type fdSlot struct {
	index    int
	userData any
}

// pollPoller is the generic poll(2) fallback. poll's pollfd array needs
// O(1) fd -> slot lookup on every event and on every Modify/Remove, which
// is exactly what the FNV-1a descriptor hash map provides; this is the one
// backend that uses it.
type pollPoller struct {
	cfg Config

	mu    sync.Mutex
	fds   hashmap.Map
	items []unix.PollFd
	count int

	stop atomic.Bool
	done chan struct{}
}

// New constructs the platform-selected backend. This generic poll
// implementation is the fallback for unix-like platforms without a native
// edge-triggered readiness API.
func New(cfg Config) (Poller, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	return &pollPoller{
		cfg:   cfg,
		fds:   *hashmap.New(cfg.Capacity),
		items: make([]unix.PollFd, 0, cfg.Capacity),
		done:  make(chan struct{}),
	}, nil
}

func (p *pollPoller) Setup() error { return nil }

func code2pollEvents(mask Code) int16 {
	var ev int16
	if mask.Has(Read) {
		ev |= unix.POLLIN | unix.POLLPRI
	}
	if mask.Has(Write) {
		ev |= unix.POLLOUT
	}
	return ev
}

func pollEvents2code(ev int16) Code {
	var c Code
	if ev&(unix.POLLIN|unix.POLLPRI) != 0 {
		c |= Read
	}
	if ev&unix.POLLOUT != 0 {
		c |= Write
	}
	if ev&unix.POLLHUP != 0 {
		c |= Close
	}
	if ev&unix.POLLERR != 0 {
		c |= Error
	}
	return c
}

func (p *pollPoller) Add(fd int, mask Code, userData any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.count >= p.cfg.Capacity {
		return ErrCapacity
	}

	idx := len(p.items)
	p.items = append(p.items, unix.PollFd{Fd: int32(fd), Events: code2pollEvents(mask)})

	if !p.fds.Add(fd, fdSlot{index: idx, userData: userData}) {
		p.items = p.items[:idx]
		return ErrCapacity
	}

	p.count++
	return nil
}

// Modify realizes poll's interest-adjustment policy: mutate the pollfd
// entry's events mask in place via the fd's recorded index. The reference
// implementation's generic-poll backend had an inverted not-found check
// here (it bailed out when the fd *was* found); this corrects that so
// Modify actually succeeds for a registered fd and fails for one that
// isn't.
func (p *pollPoller) Modify(fd int, mask Code, userData any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.fds.Get(fd)
	if !ok {
		return unix.ENOENT
	}

	slot := v.(fdSlot)
	slot.userData = userData
	p.fds.Remove(fd)
	p.fds.Add(fd, slot)
	p.items[slot.index].Events = code2pollEvents(mask)
	return nil
}

// Remove deregisters fd by swapping the last pollfd entry into its slot
// (avoiding an O(n) shift) and truncating the array, updating the moved
// entry's recorded index.
func (p *pollPoller) Remove(fd int, _ Code) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.fds.Get(fd)
	if !ok {
		return unix.ENOENT
	}
	slot := v.(fdSlot)
	p.fds.Remove(fd)
	p.count--

	last := len(p.items) - 1
	if slot.index != last {
		movedFd := int(p.items[last].Fd)
		p.items[slot.index] = p.items[last]

		if mv, ok := p.fds.Get(movedFd); ok {
			movedSlot := mv.(fdSlot)
			movedSlot.index = slot.index
			p.fds.Remove(movedFd)
			p.fds.Add(movedFd, movedSlot)
		}
	}
	p.items = p.items[:last]

	return nil
}

func (p *pollPoller) Run() error {
	go p.loop()
	return nil
}

func (p *pollPoller) loop() {
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

		p.mu.Lock()
		items := append([]unix.PollFd(nil), p.items...)
		p.mu.Unlock()

		n, err := unix.Poll(items, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n <= 0 {
			continue
		}

		for i := range items {
			if items[i].Revents == 0 {
				continue
			}

			p.mu.Lock()
			v, ok := p.fds.Get(int(items[i].Fd))
			p.mu.Unlock()
			if !ok {
				continue
			}

			p.cfg.OnEvent(p, pollEvents2code(items[i].Revents), v.(fdSlot).userData)
		}
	}
}

func (p *pollPoller) Stop() { p.stop.Store(true) }

func (p *pollPoller) Wait() { <-p.done }

func (p *pollPoller) Cleanup() {}
