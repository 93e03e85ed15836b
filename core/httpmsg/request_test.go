package httpmsg

import "testing"

func TestParseWellFormed(t *testing.T) {
	raw := []byte("GET /index.html HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n")

	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if string(req.Method) != "GET" {
		t.Errorf("Method = %q, want GET", req.Method)
	}
	if string(req.Target) != "/index.html" {
		t.Errorf("Target = %q, want /index.html", req.Target)
	}
	if string(req.Version) != "HTTP/1.1" {
		t.Errorf("Version = %q, want HTTP/1.1", req.Version)
	}
	if host := req.HeaderValue("Host"); string(host) != "example.com" {
		t.Errorf("Host = %q, want example.com", host)
	}
	if len(req.Body) != 0 {
		t.Errorf("Body = %q, want empty", req.Body)
	}
}

func TestParseWithBody(t *testing.T) {
	raw := []byte("POST /upload HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello")

	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if string(req.Body) != "hello" {
		t.Errorf("Body = %q, want hello", req.Body)
	}
}

func TestParseRejectsMissingSpaceAfterMethod(t *testing.T) {
	_, err := Parse([]byte("GET/index.html HTTP/1.1\r\n\r\n"))
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseRejectsMissingSpaceAfterTarget(t *testing.T) {
	_, err := Parse([]byte("GET /index.htmlHTTP/1.1\r\n\r\n"))
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseRejectsNoHeaderTerminator(t *testing.T) {
	_, err := Parse([]byte("GET / HTTP/1.1\r\nHost: x\r\n"))
	if err != ErrMalformed {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestParseCapsHeaderCount(t *testing.T) {
	raw := "GET / HTTP/1.1\r\n"
	for i := 0; i < MaxHeaders+10; i++ {
		raw += "X-Pad: v\r\n"
	}
	raw += "\r\n"

	req, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(req.Headers) != MaxHeaders {
		t.Errorf("len(Headers) = %d, want %d", len(req.Headers), MaxHeaders)
	}
}
