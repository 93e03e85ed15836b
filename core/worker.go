package core

import (
	"log"
	"time"

	"github.com/searchktools/staticd/core/observability"
	"github.com/searchktools/staticd/core/poller"
)

// Worker owns one Poller and a scratch buffer sized to the configured
// per-transfer buffer. assign registers a Job's socket for READ|EDGE
// interest; the event callback dispatches by code bit and realizes the
// single edge-triggered invariant: writable interest is held iff there are
// bytes left to write.
type Worker struct {
	id      int
	p       poller.Poller
	scratch []byte
	docRoot string
	manager *Manager
	monitor *observability.Monitor
}

// NewWorker constructs a Worker backed by the platform-selected Poller.
func NewWorker(id int, capacity int, bufSize int, docRoot string, manager *Manager, monitor *observability.Monitor) (*Worker, error) {
	w := &Worker{
		id:      id,
		scratch: make([]byte, bufSize),
		docRoot: docRoot,
		manager: manager,
		monitor: monitor,
	}

	p, err := poller.New(poller.Config{
		Capacity: capacity,
		OnEvent:  w.onEvent,
		OnStop: func(poller.Poller) {
			log.Printf("worker %d: poller stopped", id)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := p.Setup(); err != nil {
		return nil, err
	}
	w.p = p
	return w, nil
}

// Start begins the Worker's event loop on its own goroutine.
func (w *Worker) Start() error {
	log.Printf("worker %d: starting", w.id)
	return w.p.Run()
}

// Stop cooperatively cancels the Worker's event loop and waits for it to
// exit.
func (w *Worker) Stop() {
	w.p.Stop()
	w.p.Wait()
	w.p.Cleanup()
}

// Assign registers job's socket with this Worker's poller for
// READ|EDGE_TRIGGERED, the starting interest for every new connection.
func (w *Worker) Assign(job *Job) error {
	return w.p.Add(job.Conn.FD(), poller.Read|poller.EdgeTriggered, job)
}

func (w *Worker) onEvent(p poller.Poller, code poller.Code, userData any) {
	job, ok := userData.(*Job)
	if !ok || job == nil {
		return
	}

	if code.Has(poller.Close) || code.Has(poller.Error) {
		w.finish(job)
		return
	}

	if !job.Conn.TLSEstablished() {
		established, err := job.Conn.EstablishTLS()
		if err != nil {
			w.finish(job)
			return
		}
		if !established {
			return
		}
	}

	if code.Has(poller.Read) && job.state == StateRead {
		transitioned, err := job.readAndDispatch(w.docRoot, w.scratch)
		if err != nil {
			w.finish(job)
			return
		}
		if transitioned {
			// Piggyback: attempt one write immediately instead of waiting
			// for the next WRITE-readiness event.
			w.doWrite(job)
			return
		}
	}

	if code.Has(poller.Write) && job.state == StateWrite {
		w.doWrite(job)
	}
}

// doWrite drives one write attempt and then realizes the interest
// adjustment rules: hold WRITE interest iff bytes remain.
func (w *Worker) doWrite(job *Job) {
	done, err := job.write(w.scratch)
	if err != nil {
		w.finish(job)
		return
	}

	if !done {
		w.adjustInterest(job, true)
		return
	}

	if job.resp != nil {
		w.monitor.RecordRequest(job.resp.Status, time.Since(job.startedAt))
	}

	if job.shouldClose {
		w.finish(job)
		return
	}

	job.reset()
	w.adjustInterest(job, false)
}

// adjustInterest realizes the per-backend interest-adjustment policy via
// the uniform Poller.Modify call — each backend encodes its own
// in-place/add-remove-filter/always-re-associate behavior internally.
func (w *Worker) adjustInterest(job *Job, wantWrite bool) {
	mask := poller.Read | poller.EdgeTriggered
	if wantWrite {
		mask |= poller.Write
	}
	if err := w.p.Modify(job.Conn.FD(), mask, job); err != nil {
		w.finish(job)
	}
}

func (w *Worker) finish(job *Job) {
	w.p.Remove(job.Conn.FD(), poller.Read|poller.Write)
	job.Conn.Close()
	w.manager.Release(job.Handle)
}
