//go:build darwin || freebsd || dragonfly || netbsd || openbsd

package poller

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the BSD-family backend (including Darwin). READ and
// WRITE are registered as separate filters with EV_CLEAR for
// edge-triggering; there is no in-place "modify interest" the way epoll
// has one, so the interest-adjustment policy here is add/remove-filter,
// not modify-in-place.
type kqueuePoller struct {
	cfg Config

	kqfd int

	mu       sync.Mutex
	registry map[int]any
	writeReg map[int]bool // fds with a registered WRITE filter
	count    int

	stop   atomic.Bool
	done   chan struct{}
	events []unix.Kevent_t
}

// New constructs the platform-selected backend. On BSD/Darwin this is
// kqueue.
func New(cfg Config) (Poller, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1024
	}
	return &kqueuePoller{
		cfg:      cfg,
		registry: make(map[int]any, cfg.Capacity),
		writeReg: make(map[int]bool),
		done:     make(chan struct{}),
		// kqueue counts a READ+WRITE registration as two entries; double
		// the event buffer accordingly, matching the capacity-doubling
		// rule in spec.md §4.3.
		events: make([]unix.Kevent_t, cfg.Capacity*2),
	}, nil
}

func (p *kqueuePoller) Setup() error {
	fd, err := unix.Kqueue()
	if err != nil {
		return err
	}
	p.kqfd = fd
	return nil
}

func (p *kqueuePoller) Add(fd int, mask Code, userData any) error {
	p.mu.Lock()
	slots := 1
	if mask.Has(Write) {
		slots = 2
	}
	if p.count+slots > p.cfg.Capacity*2 {
		p.mu.Unlock()
		return ErrCapacity
	}
	p.registry[fd] = userData
	p.count += slots
	p.mu.Unlock()

	changes := p.filtersFor(fd, mask, unix.EV_ADD|unix.EV_CLEAR|unix.EV_ENABLE)
	if _, err := unix.Kevent(p.kqfd, changes, nil, nil); err != nil {
		p.mu.Lock()
		delete(p.registry, fd)
		p.count -= slots
		p.mu.Unlock()
		return err
	}

	if mask.Has(Write) {
		p.mu.Lock()
		p.writeReg[fd] = true
		p.mu.Unlock()
	}

	return nil
}

func (p *kqueuePoller) filtersFor(fd int, mask Code, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if mask.Has(Read) {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if mask.Has(Write) {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return changes
}

// Modify realizes kqueue's interest-adjustment policy: add a WRITE filter
// when writable interest is newly needed, remove it when it is not — READ
// stays registered throughout a job's lifetime so it is never re-added
// here.
func (p *kqueuePoller) Modify(fd int, mask Code, userData any) error {
	p.mu.Lock()
	if _, ok := p.registry[fd]; !ok {
		p.mu.Unlock()
		return unix.ENOENT
	}
	p.registry[fd] = userData
	hadWrite := p.writeReg[fd]
	p.mu.Unlock()

	wantWrite := mask.Has(Write)
	switch {
	case wantWrite && !hadWrite:
		changes := []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD | unix.EV_CLEAR | unix.EV_ENABLE}}
		if _, err := unix.Kevent(p.kqfd, changes, nil, nil); err != nil {
			return err
		}
		p.mu.Lock()
		p.writeReg[fd] = true
		p.count++
		p.mu.Unlock()
	case !wantWrite && hadWrite:
		changes := []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE}}
		unix.Kevent(p.kqfd, changes, nil, nil) //nolint:errcheck
		p.mu.Lock()
		p.writeReg[fd] = false
		p.count--
		p.mu.Unlock()
	}
	return nil
}

func (p *kqueuePoller) Remove(fd int, mask Code) error {
	p.mu.Lock()
	hadWrite := p.writeReg[fd]
	delete(p.registry, fd)
	delete(p.writeReg, fd)
	p.count--
	if hadWrite {
		p.count--
	}
	p.mu.Unlock()

	changes := []unix.Kevent_t{{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE}}
	if hadWrite {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	_, err := unix.Kevent(p.kqfd, changes, nil, nil)
	return err
}

func (p *kqueuePoller) Run() error {
	go p.loop()
	return nil
}

func (p *kqueuePoller) loop() {
	defer close(p.done)
	defer func() {
		if p.cfg.OnStop != nil {
			p.cfg.OnStop(p)
		}
	}()

	if p.cfg.OnEvent == nil {
		return
	}

	ts := unix.NsecToTimespec(int64(1 * 1e9))
	for {
		if p.stop.Load() {
			return
		}

		n, err := unix.Kevent(p.kqfd, nil, p.events, &ts)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}

		for i := 0; i < n; i++ {
			fd := int(p.events[i].Ident)

			p.mu.Lock()
			userData, ok := p.registry[fd]
			p.mu.Unlock()
			if !ok {
				continue
			}

			var code Code
			switch p.events[i].Filter {
			case unix.EVFILT_READ:
				code = Read
			case unix.EVFILT_WRITE:
				code = Write
			}
			if p.events[i].Flags&unix.EV_EOF != 0 {
				code |= Close
			}
			if p.events[i].Flags&unix.EV_ERROR != 0 {
				code |= Error
			}

			p.cfg.OnEvent(p, code, userData)
		}
	}
}

func (p *kqueuePoller) Stop() { p.stop.Store(true) }

func (p *kqueuePoller) Wait() { <-p.done }

func (p *kqueuePoller) Cleanup() {
	unix.Close(p.kqfd)
}
