package safety

import (
	"strings"
)

// Sandbox is the canonicalized directory outside of which no script effect is
// permitted. It is established once at process start and never mutated.
type Sandbox struct {
	root string
}

// NewSandbox canonicalizes root lexically. Canonicalization is purely
// lexical (no filesystem access) so that classification stays a pure
// function of the script text and the root.
func NewSandbox(root string) Sandbox {
	canon, _ := CanonicalPath(root, "")
	return Sandbox{root: canon}
}

// Root returns the canonical sandbox root.
func (s Sandbox) Root() string { return s.root }

// Contains reports whether the given path literal, once canonicalized,
// lives at or under the sandbox root. Relative fragments resolve against the
// root. The second return is false when the path cannot be canonicalized at
// all (UNC shares, empty or drive-relative forms).
func (s Sandbox) Contains(path string) (within bool, ok bool) {
	if s.root == "" {
		return false, true
	}
	canon, ok := CanonicalPath(path, s.root)
	if !ok {
		return false, false
	}
	return canon == s.root || strings.HasPrefix(canon, s.root+"/"), true
}

// CanonicalPath lexically normalizes a Windows or POSIX path literal:
// separators become "/", "." and ".." segments collapse, and comparison is
// case-folded (PowerShell treats the filesystem case-insensitively).
// Relative paths resolve against base; ok is false when base is empty or the
// path has no resolvable anchor.
func CanonicalPath(path, base string) (canon string, ok bool) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", false
	}
	// UNC shares are never canonicalizable into a local sandbox.
	if strings.HasPrefix(p, `\\`) || strings.HasPrefix(p, "//") {
		return "", false
	}

	p = strings.ReplaceAll(p, `\`, "/")

	var prefix string
	switch {
	case len(p) >= 2 && isDriveLetter(p[0]) && p[1] == ':':
		if len(p) == 2 || p[2] != '/' {
			// Drive-relative ("C:foo") depends on per-drive CWD state.
			return "", false
		}
		prefix = strings.ToLower(p[:2])
		p = p[2:]
	case strings.HasPrefix(p, "/"):
		prefix = ""
	default:
		// Relative: anchor to base.
		if base == "" {
			return "", false
		}
		return CanonicalPath(base+"/"+p, "")
	}

	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		switch seg {
		case "", ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, strings.ToLower(seg))
		}
	}
	return prefix + "/" + strings.Join(out, "/"), true
}

func isDriveLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
