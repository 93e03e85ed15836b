//go:build linux

package poller

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestEpollAddModifyRemove(t *testing.T) {
	a, _ := socketpair(t)

	p, err := New(Config{Capacity: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer p.Cleanup()

	if err := p.Add(a, Read|EdgeTriggered, "hello"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Modify(a, Read|Write|EdgeTriggered, "hello2"); err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if err := p.Remove(a, Read|Write); err != nil {
		t.Fatalf("Remove: %v", err)
	}
}

func TestEpollModifyUnregisteredFDFails(t *testing.T) {
	p, err := New(Config{Capacity: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer p.Cleanup()

	if err := p.Modify(999, Read, nil); err == nil {
		t.Fatalf("expected Modify on an unregistered fd to fail")
	}
}

func TestEpollAddFailsAtCapacity(t *testing.T) {
	a, _ := socketpair(t)
	c, _ := socketpair(t)

	p, err := New(Config{Capacity: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer p.Cleanup()

	if err := p.Add(a, Read, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Add(c, Read, nil); err != ErrCapacity {
		t.Fatalf("Add at capacity = %v, want ErrCapacity", err)
	}
}

func TestEpollRunDeliversReadEvent(t *testing.T) {
	a, b := socketpair(t)

	var mu sync.Mutex
	var gotCode Code
	delivered := make(chan struct{}, 1)

	p, err := New(Config{
		Capacity: 4,
		OnEvent: func(_ Poller, code Code, userData any) {
			mu.Lock()
			gotCode = code
			mu.Unlock()
			select {
			case delivered <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := p.Add(a, Read|EdgeTriggered, "conn"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := p.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer func() {
		p.Stop()
		p.Wait()
		p.Cleanup()
	}()

	if _, err := unix.Write(b, []byte("ping")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a readiness event")
	}

	mu.Lock()
	defer mu.Unlock()
	if !gotCode.Has(Read) {
		t.Fatalf("gotCode = %v, want Read set", gotCode)
	}
}
