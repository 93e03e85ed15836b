package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/searchktools/staticd/core/observability"
	"github.com/searchktools/staticd/core/transport"
)

func TestWorkerServesRequestEndToEnd(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(4)
	monitor := observability.NewMonitor()

	w, err := NewWorker(0, 4, 4096, root, manager, monitor)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	serverFD, clientFD := fds[0], fds[1]
	defer unix.Close(clientFD)

	conn := transport.NewConnection(serverFD, nil)
	job, _, ok := manager.Acquire(conn, nil)
	if !ok {
		t.Fatalf("manager.Acquire failed")
	}
	if err := w.Assign(job); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	req := []byte("GET /index.html HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
	if _, err := unix.Write(clientFD, req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var buf bytes.Buffer
	scratch := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, rerr := unix.Read(clientFD, scratch)
		if n > 0 {
			buf.Write(scratch[:n])
		}
		if bytes.Contains(buf.Bytes(), []byte("hello world")) {
			break
		}
		if rerr != nil && rerr != unix.EAGAIN {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("200 OK")) {
		t.Fatalf("response missing 200 status line, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("hello world")) {
		t.Fatalf("response missing file body, got %q", out)
	}
}
