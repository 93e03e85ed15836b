package httpmsg

import (
	"bytes"
	"errors"
)

// MaxHeaders bounds the number of headers a single request may carry;
// excess headers are consumed but silently discarded, matching the
// compile-time cap from the reference parser.
const MaxHeaders = 128

// ErrMalformed is returned when the required method/target/version
// delimiters are missing, or when no blank line ends the header block.
var ErrMalformed = errors.New("httpmsg: malformed request")

// Header is a name/value pair as a slice into the caller's raw buffer.
type Header struct {
	Name, Value []byte
}

// Request holds slices into the caller-supplied buffer. No copying:
// Method, Target, Version, and every Header's Name/Value point directly
// into data. The slices are valid only until data is overwritten, which is
// why the Job builds its response from the Request before its read buffer
// is reused.
type Request struct {
	Method  []byte
	Target  []byte
	Version []byte
	Headers []Header
	Body    []byte
}

// fieldEnd finds the next terminator among space, CR, LF, NUL starting at
// off, returning its index or -1.
func fieldEnd(b []byte, off int) int {
	for i := off; i < len(b); i++ {
		switch b[i] {
		case ' ', '\r', '\n', 0:
			return i
		}
	}
	return -1
}

// Parse scans data for a request line, headers, and body, producing
// zero-copy slices. It does not validate method or URI syntax beyond
// delimiter scanning — that is deliberately out of scope (spec-level
// non-goal: no content negotiation beyond MIME-by-extension).
func Parse(data []byte) (*Request, error) {
	lineEnd := bytes.IndexByte(data, '\n')
	if lineEnd == -1 {
		return nil, ErrMalformed
	}

	line := data[:lineEnd]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}

	methodEnd := fieldEnd(line, 0)
	if methodEnd == -1 || methodEnd == 0 {
		return nil, ErrMalformed
	}
	method := line[:methodEnd]

	targetStart := methodEnd + 1
	if targetStart >= len(line) {
		return nil, ErrMalformed
	}
	targetEnd := fieldEnd(line, targetStart)
	if targetEnd == -1 || targetEnd == targetStart {
		return nil, ErrMalformed
	}
	target := line[targetStart:targetEnd]

	versionStart := targetEnd + 1
	if versionStart > len(line) {
		return nil, ErrMalformed
	}
	version := line[versionStart:]

	req := &Request{
		Method:  method,
		Target:  target,
		Version: version,
	}

	rest := data[lineEnd+1:]
	var headerEnd, sep int
	switch {
	case bytes.HasPrefix(rest, []byte("\r\n")):
		// No headers: the blank line follows the request line directly.
		headerEnd, sep = 0, 2
	case bytes.HasPrefix(rest, []byte("\n")):
		headerEnd, sep = 0, 1
	default:
		headerEnd = bytes.Index(rest, []byte("\r\n\r\n"))
		sep = 4
		if headerEnd == -1 {
			headerEnd = bytes.Index(rest, []byte("\n\n"))
			sep = 2
		}
	}
	if headerEnd == -1 {
		return nil, ErrMalformed
	}

	parseHeaders(req, rest[:headerEnd])
	if headerEnd+sep < len(rest) {
		req.Body = rest[headerEnd+sep:]
	}

	return req, nil
}

func parseHeaders(req *Request, data []byte) {
	for len(data) > 0 && len(req.Headers) < MaxHeaders {
		lineEnd := bytes.IndexByte(data, '\n')
		if lineEnd == -1 {
			lineEnd = len(data)
		}

		line := data[:lineEnd]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}

		if len(line) == 0 {
			break
		}

		if colon := bytes.IndexByte(line, ':'); colon > 0 {
			name := bytes.TrimSpace(line[:colon])
			value := bytes.TrimSpace(line[colon+1:])
			req.Headers = append(req.Headers, Header{Name: name, Value: value})
		}

		if lineEnd >= len(data)-1 {
			break
		}
		data = data[lineEnd+1:]
	}
}

// HeaderValue returns the value of the named header (case-insensitive), or
// nil if absent.
func (r *Request) HeaderValue(name string) []byte {
	for _, h := range r.Headers {
		if equalFoldASCII(h.Name, name) {
			return h.Value
		}
	}
	return nil
}

func equalFoldASCII(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		c1, c2 := b[i], s[i]
		if 'A' <= c1 && c1 <= 'Z' {
			c1 += 'a' - 'A'
		}
		if 'A' <= c2 && c2 <= 'Z' {
			c2 += 'a' - 'A'
		}
		if c1 != c2 {
			return false
		}
	}
	return true
}
