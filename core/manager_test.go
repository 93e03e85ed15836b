package core

import (
	"testing"

	"github.com/searchktools/staticd/core/transport"
)

func TestManagerAcquireReleaseBijection(t *testing.T) {
	m := NewManager(2)

	conn := transport.NewConnection(-1, nil)
	job1, h1, ok := m.Acquire(conn, nil)
	if !ok {
		t.Fatalf("expected acquire to succeed")
	}
	if job1.Conn != conn {
		t.Fatalf("job not bound to the acquired connection")
	}
	if m.InUse() != 1 {
		t.Fatalf("InUse = %d, want 1", m.InUse())
	}

	_, h2, ok := m.Acquire(conn, nil)
	if !ok {
		t.Fatalf("expected second acquire to succeed")
	}

	if _, _, ok := m.Acquire(conn, nil); ok {
		t.Fatalf("expected exhaustion at capacity %d", m.Cap())
	}

	m.Release(h1)
	if m.InUse() != 1 {
		t.Fatalf("InUse after release = %d, want 1", m.InUse())
	}

	if _, _, ok := m.Acquire(conn, nil); !ok {
		t.Fatalf("expected acquire to succeed after release")
	}

	m.Release(h2)
}

func TestManagerAcquireInitializesFreshJob(t *testing.T) {
	m := NewManager(1)
	conn := transport.NewConnection(-1, nil)

	job, h, ok := m.Acquire(conn, nil)
	if !ok {
		t.Fatalf("acquire failed")
	}
	job.shouldClose = true
	job.sentHead = 42
	m.Release(h)

	job2, _, ok := m.Acquire(conn, nil)
	if !ok {
		t.Fatalf("reacquire failed")
	}
	if job2.shouldClose || job2.sentHead != 0 {
		t.Fatalf("reacquired job carried stale state: %+v", job2)
	}
}
