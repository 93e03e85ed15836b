// Package transport wraps a non-blocking stream socket, with optional TLS,
// in the small set of operations the HTTP engine needs: accept, receive,
// send, send-file and close. Every operation is non-blocking by
// construction and returns a distinguishable would-block result instead of
// looping on EAGAIN — the poller, not this package, decides when to retry.
package transport

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ListenConfig carries the socket-level tuning knobs from configuration
// into socket setup.
type ListenConfig struct {
	Address        string
	Port           int
	IPv6           bool
	ReceiveTimeout int // seconds, 0 disables SO_RCVTIMEO
	SendTimeout    int // seconds, 0 disables SO_SNDTIMEO
	RecvBufBytes   int
	SendBufBytes   int
	FastOpen       bool
}

// Listen creates, binds and listens on a non-blocking server socket
// according to cfg. The returned fd is ready to be registered with a
// Poller for READ events.
func Listen(cfg ListenConfig) (int, error) {
	domain := unix.AF_INET
	if cfg.IPv6 {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return -1, fmt.Errorf("transport: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("transport: SO_REUSEADDR: %w", err)
	}

	if cfg.IPv6 {
		// Disable v4-mapped addresses so the IPv6 and IPv4 listeners are
		// strictly separate, matching a dual-stack deployment that binds
		// both explicitly.
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("transport: IPV6_V6ONLY: %w", err)
		}
	}

	if cfg.FastOpen {
		// Best-effort: not every kernel supports TCP_FASTOPEN on a
		// listening socket, and spec treats it as optional.
		unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 16) //nolint:errcheck
	}

	if err := bind(fd, domain, cfg.Address, cfg.Port); err != nil {
		unix.Close(fd)
		return -1, err
	}

	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("transport: listen: %w", err)
	}

	return fd, nil
}

func bind(fd, domain int, address string, port int) error {
	ip := net.ParseIP(address)
	if domain == unix.AF_INET {
		var sa unix.SockaddrInet4
		sa.Port = port
		if ip != nil {
			copy(sa.Addr[:], ip.To4())
		}
		return unix.Bind(fd, &sa)
	}

	var sa unix.SockaddrInet6
	sa.Port = port
	if ip != nil {
		copy(sa.Addr[:], ip.To16())
	}
	return unix.Bind(fd, &sa)
}

// Accept performs one non-blocking accept on the listening socket fd. The
// returned bool reports whether a connection was actually accepted; when
// false with a nil error, the accept queue is empty (would-block), the call
// was interrupted (EINTR), or the pending connection was aborted
// (ECONNABORTED).
func Accept(listenFD int) (fd int, accepted bool, err error) {
	nfd, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, false, nil
		}
		if err == unix.EINTR || err == unix.ECONNABORTED {
			return -1, false, nil
		}
		return -1, false, err
	}
	return nfd, true, nil
}

// Tune applies the per-connection socket options described in spec.md
// §4.4 to a freshly accepted descriptor.
func Tune(fd int, cfg ListenConfig) error {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1); err != nil {
		return fmt.Errorf("transport: TCP_NODELAY: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
		return fmt.Errorf("transport: SO_KEEPALIVE: %w", err)
	}
	// SO_LINGER{on,0}: force an RST on close instead of the usual FIN +
	// TIME_WAIT, so the local port is reusable immediately under load.
	if err := unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0}); err != nil {
		return fmt.Errorf("transport: SO_LINGER: %w", err)
	}
	if cfg.ReceiveTimeout > 0 {
		tv := unix.Timeval{Sec: int64(cfg.ReceiveTimeout)}
		unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv) //nolint:errcheck
	}
	if cfg.SendTimeout > 0 {
		tv := unix.Timeval{Sec: int64(cfg.SendTimeout)}
		unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv) //nolint:errcheck
	}
	if cfg.RecvBufBytes > 0 {
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBufBytes) //nolint:errcheck
	}
	if cfg.SendBufBytes > 0 {
		unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBufBytes) //nolint:errcheck
	}
	return nil
}
