package core

import (
	"net"

	"github.com/searchktools/staticd/core/objpool"
	"github.com/searchktools/staticd/core/transport"
)

// Manager owns the fixed-capacity Job pool shared by every Listener and
// Worker. Sized to the maximum concurrent connections across all
// listeners, plus the small margin the caller chooses to pass in.
type Manager struct {
	pool *objpool.Pool[Job]
}

// NewManager builds a Manager whose pool holds capacity Jobs.
func NewManager(capacity int) *Manager {
	return &Manager{pool: objpool.New[Job](capacity)}
}

// Acquire returns a ready-to-use Job bound to conn, or (nil, 0, false) when
// the pool is exhausted — the caller (a Listener) sheds the connection in
// that case.
func (m *Manager) Acquire(conn *transport.Connection, peer net.Addr) (*Job, objpool.Handle, bool) {
	h, err := m.pool.Acquire()
	if err != nil {
		return nil, 0, false
	}
	job := m.pool.Get(h)
	job.Init(conn, peer)
	job.Handle = h
	return job, h, true
}

// Release returns a Job's slot to the pool.
func (m *Manager) Release(h objpool.Handle) {
	m.pool.Release(h)
}

// InUse reports the number of Jobs currently checked out, for
// observability.
func (m *Manager) InUse() int {
	return m.pool.InUse()
}

// Cap returns the pool's fixed capacity.
func (m *Manager) Cap() int {
	return m.pool.Cap()
}
