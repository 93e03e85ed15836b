package core

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/searchktools/staticd/core/httpmsg"
	"github.com/searchktools/staticd/core/transport"
)

// socketpairConn builds a connected, non-blocking fd pair and wraps one end
// in a plain (non-TLS) Connection; the test reads/writes the other end
// directly with unix.Read/unix.Write.
func socketpairConn(t *testing.T) (*transport.Connection, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() { unix.Close(fds[1]) })
	return transport.NewConnection(fds[0], nil), fds[1]
}

func TestJobResetClearsRequestState(t *testing.T) {
	j := &Job{}
	j.sentHead, j.sentBody, j.sentFile = 1, 2, 3
	j.shouldClose = true
	j.state = StateWrite
	j.resp = &httpmsg.Response{}

	j.reset()

	if j.state != StateRead || j.resp != nil || j.shouldClose {
		t.Fatalf("reset left stale state: %+v", j)
	}
	if j.sentHead != 0 || j.sentBody != 0 || j.sentFile != 0 {
		t.Fatalf("reset left nonzero counters: %+v", j)
	}
}

func TestJobWriteHeadOnlyResponse(t *testing.T) {
	conn, peer := socketpairConn(t)
	j := &Job{}
	j.Init(conn, nil)
	j.resp = httpmsg.BuildOptions()
	j.state = StateWrite

	done, err := j.write(nil)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !done {
		t.Fatalf("expected write to finish a small head-only response in one call")
	}

	var buf [256]byte
	n, err := unix.Read(peer, buf[:])
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Contains(buf[:n], []byte("204 No Content")) {
		t.Fatalf("peer got %q, want a 204 status line", buf[:n])
	}
}

func TestJobWriteFileBodyStreamsContent(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "f.txt")
	content := []byte("hello from the file body path")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	info, err := f.Stat()
	if err != nil {
		t.Fatal(err)
	}

	conn, peer := socketpairConn(t)
	j := &Job{}
	j.Init(conn, nil)
	j.resp = httpmsg.BuildFile(path, f, info, false)
	j.state = StateWrite

	scratch := make([]byte, 4096)
	done, err := j.write(scratch)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !done {
		t.Fatalf("expected a small file to fully drain in one write")
	}

	var buf [4096]byte
	total := 0
	for {
		n, rerr := unix.Read(peer, buf[total:])
		if rerr != nil {
			break
		}
		if n <= 0 {
			break
		}
		total += n
	}
	if !bytes.Contains(buf[:total], content) {
		t.Fatalf("peer did not receive the file body, got %q", buf[:total])
	}
}

func TestJobHasMoreWriteTracksPartialHead(t *testing.T) {
	j := &Job{}
	j.resp = httpmsg.BuildOptions()
	if !j.HasMoreWrite() {
		t.Fatalf("expected unsent head to report more write pending")
	}
	j.sentHead = int64(len(j.resp.Head))
	if j.HasMoreWrite() {
		t.Fatalf("expected fully-sent head-only response to report no more writes")
	}
}
