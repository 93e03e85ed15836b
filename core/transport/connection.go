package transport

import (
	"crypto/tls"
	"errors"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock names the condition in which an operation could not make
// progress without blocking. No operation in this package returns it: they
// report would-block through their results instead (a short count with a
// nil error, or accepted=false from Accept), and callers return to the
// poller and retry on the next readiness event.
var ErrWouldBlock = errors.New("transport: would block")

// Connection wraps one accepted, non-blocking stream socket plus its
// optional TLS state. Callers must not call Receive or Send until
// TLSEstablished() is true.
type Connection struct {
	fd int

	tlsConfig      *tls.Config
	tlsFile        *os.File
	tlsConn        *tls.Conn
	tlsEstablished bool

	// closeNotifySent tracks whether a TLS close_notify was already
	// written during Close, so a retried Close does not resend it.
	closeNotifySent bool
}

// NewConnection wraps fd. If tlsConfig is non-nil, the connection requires
// a handshake via EstablishTLS before Receive/Send are usable.
func NewConnection(fd int, tlsConfig *tls.Config) *Connection {
	return &Connection{fd: fd, tlsConfig: tlsConfig}
}

// FD returns the raw descriptor, for poller registration.
func (c *Connection) FD() int { return c.fd }

// TLSEstablished reports whether the connection is ready for Receive/Send.
func (c *Connection) TLSEstablished() bool {
	return c.tlsConfig == nil || c.tlsEstablished
}

// EstablishTLS drives the non-blocking TLS handshake one step. It returns
// (true, nil) once the handshake completes, (false, nil) on
// WANT_READ/WANT_WRITE (the caller should wait for the next readiness
// event and call again), and a non-nil error on any other failure.
//
// tls.Conn.Handshake is written for a blocking net.Conn; non-blocking
// progression is emulated by giving the underlying connection a short
// (5 ms) deadline so a read/write that would otherwise block instead
// returns quickly with a timeout, which this method maps back to
// "OK-but-not-established".
func (c *Connection) EstablishTLS() (bool, error) {
	if c.tlsConfig == nil {
		return true, nil
	}
	if c.tlsConn == nil {
		c.tlsFile = os.NewFile(uintptr(c.fd), "conn")
		nc, err := net.FileConn(c.tlsFile)
		if err != nil {
			return false, err
		}
		c.tlsConn = tls.Server(nc, c.tlsConfig)
	}

	c.tlsConn.SetDeadline(time.Now().Add(5 * time.Millisecond)) //nolint:errcheck
	err := c.tlsConn.Handshake()
	c.tlsConn.SetDeadline(time.Time{}) //nolint:errcheck
	if err == nil {
		c.tlsEstablished = true
		return true, nil
	}

	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return false, nil
	}
	return false, err
}

// Receive drains the socket into buf, starting at buf[:0], looping until
// would-block. It returns the number of bytes read and never treats a
// zero-byte read as an error; callers interpret zero as peer-close only
// when they expected data.
func (c *Connection) Receive(buf []byte) (int, error) {
	if c.tlsConfig != nil {
		return c.receiveTLS(buf)
	}
	return c.receivePlain(buf)
}

func (c *Connection) receivePlain(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Read(c.fd, buf[total:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
	}
	return total, nil
}

func (c *Connection) receiveTLS(buf []byte) (int, error) {
	c.tlsConn.SetReadDeadline(time.Now().Add(1 * time.Millisecond)) //nolint:errcheck
	defer c.tlsConn.SetReadDeadline(time.Time{})                    //nolint:errcheck

	total := 0
	for total < len(buf) {
		n, err := c.tlsConn.Read(buf[total:])
		total += n
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// Send writes buf, looping until would-block or all bytes are drained.
// Idempotent on partial sends: the caller re-enters with the same buffer
// and the returned count advanced by.
func (c *Connection) Send(buf []byte) (int, error) {
	if c.tlsConfig != nil {
		return c.sendTLS(buf)
	}
	return c.sendPlain(buf)
}

func (c *Connection) sendPlain(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := unix.Write(c.fd, buf[total:])
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			if err == unix.EINTR {
				continue
			}
			return total, err
		}
		total += n
	}
	return total, nil
}

func (c *Connection) sendTLS(buf []byte) (int, error) {
	c.tlsConn.SetWriteDeadline(time.Now().Add(1 * time.Millisecond)) //nolint:errcheck
	defer c.tlsConn.SetWriteDeadline(time.Time{})                    //nolint:errcheck

	n, err := c.tlsConn.Write(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

// Close shuts the write half down, drains any trailing bytes best-effort
// and closes the descriptor. If TLS is established, a close_notify is
// sent first.
func (c *Connection) Close() error {
	if c.tlsConn != nil && c.tlsEstablished && !c.closeNotifySent {
		c.closeNotifySent = true
		c.tlsConn.SetWriteDeadline(time.Now().Add(5 * time.Millisecond)) //nolint:errcheck
		c.tlsConn.CloseWrite()                                          //nolint:errcheck
	}

	unix.Shutdown(c.fd, unix.SHUT_WR) //nolint:errcheck

	var scratch [256]byte
	const drainCap = 16
	for i := 0; i < drainCap; i++ {
		n, err := unix.Read(c.fd, scratch[:])
		if err != nil || n <= 0 {
			break
		}
	}

	if c.tlsConn != nil {
		c.tlsConn.Close() //nolint:errcheck
		c.tlsFile.Close() //nolint:errcheck
		return nil
	}
	return unix.Close(c.fd)
}
