package httpmsg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrForbidden is returned when a resolved path escapes the document root,
// and also doubles as "not found" — the parse layer conflates permission
// with absence rather than leak which one applies.
var ErrForbidden = errors.New("httpmsg: path forbidden")

// pathHasPrefix reports whether canonical starts with root, with the next
// byte after root being '/' or end-of-string — the directory-traversal
// guard from the path resolution algorithm.
func pathHasPrefix(canonical, root string) bool {
	if len(canonical) < len(root) {
		return false
	}

	if canonical[:len(root)] != root {
		return false
	}

	if len(canonical) == len(root) {
		return true
	}
	return canonical[len(root)] == '/'
}

// ResolvePath implements the path resolution algorithm: truncate at '?',
// percent-decode, join with root, default to index.html on directory
// targets, canonicalize and guard against traversal, then stat (re-stat
// after an index.html append, unlike the reference implementation which
// omits the second stat).
func ResolvePath(root, target string) (resolved string, info os.FileInfo, err error) {
	if idx := strings.IndexByte(target, '?'); idx != -1 {
		target = target[:idx]
	}

	decoded, err := percentDecode(target)
	if err != nil {
		return "", nil, ErrForbidden
	}

	canonicalRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", nil, err
	}

	joined := filepath.Join(root, decoded)
	if decoded == "" || strings.HasSuffix(decoded, "/") {
		joined = filepath.Join(joined, "index.html")
	}

	canonical, err := canonicalizeExisting(joined)
	if err != nil {
		return "", nil, ErrForbidden
	}

	if !pathHasPrefix(canonical, canonicalRoot) {
		return "", nil, ErrForbidden
	}

	info, err = os.Stat(canonical)
	if err != nil {
		return "", nil, ErrForbidden
	}

	if info.IsDir() {
		canonical = filepath.Join(canonical, "index.html")
		info, err = os.Stat(canonical)
		if err != nil {
			return "", nil, ErrForbidden
		}
		if !pathHasPrefix(canonical, canonicalRoot) {
			return "", nil, ErrForbidden
		}
	}

	return canonical, info, nil
}

// canonicalizeExisting resolves symlinks on the deepest existing ancestor
// of path, then re-appends the remaining (possibly not-yet-existing)
// components — EvalSymlinks itself requires the full path to exist, which
// is too strict for a path that may still need an index.html append.
func canonicalizeExisting(path string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved, nil
	}

	dir, base := filepath.Split(path)
	dir = strings.TrimSuffix(dir, string(filepath.Separator))
	if dir == "" || dir == path {
		return "", os.ErrNotExist
	}

	resolvedDir, err := canonicalizeExisting(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, base), nil
}

// percentDecode decodes a path prefix, mapping '+' to space and resolving
// %XX escapes; malformed escapes are rejected.
func percentDecode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 >= len(s) {
				return "", errors.New("httpmsg: malformed percent escape")
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return "", errors.New("httpmsg: malformed percent escape")
			}
			b.WriteByte(byte(hi<<4 | lo))
			i += 2
		default:
			b.WriteByte(s[i])
		}
	}

	return b.String(), nil
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}
