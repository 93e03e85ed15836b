package core

import (
	"os"

	"github.com/searchktools/staticd/core/httpmsg"
)

// dispatch resolves the parsed request against docRoot and builds the
// response spec.md §4.5 describes, by method.
func dispatch(docRoot string, req *httpmsg.Request) *httpmsg.Response {
	method := string(req.Method)

	switch method {
	case "GET", "HEAD":
		return dispatchFile(docRoot, req, method == "HEAD")
	case "OPTIONS":
		return httpmsg.BuildOptions()
	default:
		return httpmsg.BuildMethodNotAllowed()
	}
}

func dispatchFile(docRoot string, req *httpmsg.Request, headOnly bool) *httpmsg.Response {
	resolved, info, err := httpmsg.ResolvePath(docRoot, string(req.Target))
	if err != nil {
		// Traversal rejection and a missing target are conflated into 404,
		// per spec.md §7's error taxonomy: the parse layer cannot
		// distinguish permission from absence without leaking information.
		// Any other failure (docRoot itself unreadable, e.g. yanked out
		// from under the process) is a genuine server-side fault.
		if err == httpmsg.ErrForbidden {
			return httpmsg.BuildNotFound()
		}
		return httpmsg.BuildInternalError()
	}

	f, err := os.Open(resolved)
	if err != nil {
		// Stat succeeded but Open failed (removal or permission change in
		// between): still a file error, conflated into 404 like the rest.
		return httpmsg.BuildNotFound()
	}

	return httpmsg.BuildFile(resolved, f, info, headOnly)
}
