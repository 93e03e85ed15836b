package core

import (
	"errors"
	"net"
	"time"

	"github.com/searchktools/staticd/core/httpmsg"
	"github.com/searchktools/staticd/core/objpool"
	"github.com/searchktools/staticd/core/transport"
)

var errPeerClosed = errors.New("core: peer closed")

// State is a Job's place in its READ/WRITE lifecycle.
type State int

const (
	StateRead State = iota
	StateWrite
)

// Job bundles one Connection with its HTTP state. Jobs live in the
// Manager's object pool and are never heap-allocated on the hot path;
// reset() recycles a Job for the next request on a keep-alive connection.
type Job struct {
	Conn   *transport.Connection
	Peer   net.Addr
	Handle objpool.Handle

	state State

	req      *httpmsg.Request
	resp     *httpmsg.Response
	sentHead int64
	sentBody int64
	sentFile int64

	shouldClose bool
	startedAt   time.Time
}

// Init prepares a freshly acquired Job for a new connection.
func (j *Job) Init(conn *transport.Connection, peer net.Addr) {
	j.Conn = conn
	j.Peer = peer
	j.reset()
}

// reset zeroes per-request counters and HTTP state while leaving the
// Connection intact, realizing keep-alive reuse.
func (j *Job) reset() {
	j.state = StateRead
	j.req = nil
	j.resp = nil
	j.sentHead = 0
	j.sentBody = 0
	j.sentFile = 0
	j.shouldClose = false
}

// readAndDispatch drains the socket, parses whatever arrived and builds
// the response, transitioning the Job from READ to WRITE. It returns
// transitioned=false only together with an error: errPeerClosed when the
// readable event delivered no bytes, or the transport error itself. Both
// are terminal.
func (j *Job) readAndDispatch(docRoot string, scratch []byte) (transitioned bool, err error) {
	j.startedAt = time.Now()

	n, err := j.Conn.Receive(scratch)
	if err != nil {
		return false, err
	}
	if n == 0 {
		// No bytes on a readable edge-triggered event means the peer has
		// half-closed; nothing further will ever arrive on this fd.
		return false, errPeerClosed
	}

	req, perr := httpmsg.Parse(scratch[:n])
	var resp *httpmsg.Response
	if perr != nil {
		resp = httpmsg.BuildBadRequest()
	} else {
		resp = dispatch(docRoot, req)
	}

	j.resp = resp
	j.shouldClose = resp.Close
	j.state = StateWrite
	return true, nil
}

// write sends as much of the current response as the socket accepts
// without blocking. done reports whether the entire response (head, then
// body or file) has been sent.
func (j *Job) write(scratch []byte) (done bool, err error) {
	if j.resp == nil {
		return true, nil
	}

	if j.sentHead < int64(len(j.resp.Head)) {
		n, werr := j.Conn.Send(j.resp.Head[j.sentHead:])
		j.sentHead += int64(n)
		if werr != nil {
			return false, werr
		}
		if j.sentHead < int64(len(j.resp.Head)) {
			return false, nil
		}
	}

	switch j.resp.Variant {
	case httpmsg.HeadOnly:
		return true, nil

	case httpmsg.StringBody:
		if j.sentBody >= int64(len(j.resp.Body)) {
			return true, nil
		}
		n, werr := j.Conn.Send(j.resp.Body[j.sentBody:])
		j.sentBody += int64(n)
		if werr != nil {
			return false, werr
		}
		return j.sentBody >= int64(len(j.resp.Body)), nil

	case httpmsg.FileBody:
		if j.resp.File == nil || j.sentFile >= j.resp.Size {
			return true, nil
		}
		n, werr := j.Conn.SendFile(j.resp.File, j.sentFile, j.resp.Size, scratch)
		j.sentFile += n
		if werr != nil {
			return false, werr
		}
		done := j.sentFile >= j.resp.Size
		if done {
			j.resp.File.Close()
		}
		return done, nil

	default:
		return true, nil
	}
}

// HasMoreWrite reports whether any bytes of the current response remain
// unsent.
func (j *Job) HasMoreWrite() bool {
	if j.resp == nil {
		return false
	}
	if j.sentHead < int64(len(j.resp.Head)) {
		return true
	}
	switch j.resp.Variant {
	case httpmsg.StringBody:
		return j.sentBody < int64(len(j.resp.Body))
	case httpmsg.FileBody:
		return j.sentFile < j.resp.Size
	default:
		return false
	}
}
