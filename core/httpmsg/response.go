package httpmsg

import (
	"fmt"
	"os"
	"time"

	"github.com/searchktools/staticd/core/mime"
)

// Variant selects what Job.write sends after the head buffer.
type Variant int

const (
	// HeadOnly sends no body — used for HEAD and OPTIONS responses.
	HeadOnly Variant = iota
	// StringBody sends a small in-memory HTML body — error pages.
	StringBody
	// FileBody streams an open file via the transport's send-file path.
	FileBody
)

// Response is the pre-built head buffer plus a body variant.
type Response struct {
	Variant Variant
	Status  int // HTTP status code, for observability only
	Head    []byte
	Body    []byte   // StringBody payload
	File    *os.File // FileBody handle
	Size    int64    // FileBody length (== stat size)
	Close   bool     // true forces Connection: close and release after send
}

const serverName = "staticd"

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 204:
		return "No Content"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 500:
		return "Internal Server Error"
	default:
		return "Unknown"
	}
}

func rfc1123GMT(t time.Time) string {
	return t.UTC().Format(time.RFC1123)[:len(time.RFC1123)-4] + " GMT"
}

func writeStatusLine(buf []byte, code int) []byte {
	buf = append(buf, "HTTP/1.1 "...)
	buf = fmt.Appendf(buf, "%d", code)
	buf = append(buf, ' ')
	buf = append(buf, statusText(code)...)
	buf = append(buf, "\r\n"...)
	return buf
}

func writeCommonHeaders(buf []byte, contentLength int64, keepAlive bool) []byte {
	buf = append(buf, "Date: "...)
	buf = append(buf, rfc1123GMT(time.Now())...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Server: "...)
	buf = append(buf, serverName...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Content-Length: "...)
	buf = fmt.Appendf(buf, "%d", contentLength)
	buf = append(buf, "\r\n"...)
	if keepAlive {
		buf = append(buf, "Connection: keep-alive\r\n"...)
	} else {
		buf = append(buf, "Connection: close\r\n"...)
	}
	return buf
}

// BuildFile builds a 200 FILE_BODY (or HEAD_ONLY when headOnly is set)
// response for an already-opened, already-stat'd file.
func BuildFile(path string, f *os.File, info os.FileInfo, headOnly bool) *Response {
	buf := make([]byte, 0, 256)
	buf = writeStatusLine(buf, 200)
	buf = writeCommonHeaders(buf, info.Size(), true)
	buf = append(buf, "Content-Type: "...)
	buf = append(buf, mime.Lookup(path)...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Last-Modified: "...)
	buf = append(buf, rfc1123GMT(info.ModTime())...)
	buf = append(buf, "\r\n"...)
	buf = append(buf, "Accept-Ranges: none\r\n"...)
	buf = append(buf, "Cache-Control: public, max-age=86400\r\n"...)
	buf = append(buf, "\r\n"...)

	variant := FileBody
	if headOnly {
		variant = HeadOnly
		f.Close()
		f = nil
	}

	return &Response{Variant: variant, Status: 200, Head: buf, File: f, Size: info.Size(), Close: false}
}

// BuildOptions builds the 204 OPTIONS response.
func BuildOptions() *Response {
	buf := make([]byte, 0, 128)
	buf = writeStatusLine(buf, 204)
	buf = writeCommonHeaders(buf, 0, true)
	buf = append(buf, "Allow: GET, HEAD, OPTIONS\r\n"...)
	buf = append(buf, "\r\n"...)
	return &Response{Variant: HeadOnly, Status: 204, Head: buf}
}

func buildErrorPage(code int, message string) *Response {
	body := fmt.Appendf(nil, "<html><body><h1>%d %s</h1></body></html>", code, message)
	buf := make([]byte, 0, 256)
	buf = writeStatusLine(buf, code)
	keepAlive := code == 404 || code == 405
	buf = writeCommonHeaders(buf, int64(len(body)), keepAlive)
	buf = append(buf, "Content-Type: text/html\r\n"...)
	buf = append(buf, "\r\n"...)
	return &Response{Variant: StringBody, Status: code, Head: buf, Body: body, Close: !keepAlive}
}

// BuildNotFound builds the 404 response used both for genuinely absent
// files and for file errors the parse layer cannot further distinguish
// (permission denied, traversal rejection) without leaking information.
func BuildNotFound() *Response { return buildErrorPage(404, statusText(404)) }

// BuildMethodNotAllowed builds the 405 response for any method other than
// GET/HEAD/OPTIONS.
func BuildMethodNotAllowed() *Response { return buildErrorPage(405, statusText(405)) }

// BuildBadRequest builds the 400 response for a parse failure.
func BuildBadRequest() *Response { return buildErrorPage(400, statusText(400)) }

// BuildInternalError builds the 500 response for a server-side fault,
// such as a document root that can no longer be resolved.
func BuildInternalError() *Response { return buildErrorPage(500, statusText(500)) }
