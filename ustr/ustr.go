// Package ustr provides the Path string type used by the VFS's mount
// table and path resolution, grounded on biscuit/src/ustr/ustr.go.
package ustr

// Path is an immutable filesystem path, kept as a distinct byte-slice type
// (rather than a plain string) because the VFS builds paths by repeated
// in-place extension while resolving a lookup, mirroring biscuit's
// Ustr type.
type Path []byte

// MkPath converts a Go string into a Path.
func MkPath(s string) Path {
	return Path(s)
}

// Root is the Path for the filesystem root.
func Root() Path { return Path("/") }

// Dot is the Path for the current-directory pseudo entry.
func Dot() Path { return Path(".") }

// DotDot is the Path for the parent-directory pseudo entry.
var DotDot = Path("..")

// IsDot reports whether p is exactly ".".
func (p Path) IsDot() bool {
	return len(p) == 1 && p[0] == '.'
}

// IsDotDot reports whether p is exactly "..".
func (p Path) IsDotDot() bool {
	return len(p) == 2 && p[0] == '.' && p[1] == '.'
}

// IsAbsolute reports whether p begins with '/'.
func (p Path) IsAbsolute() bool {
	return len(p) > 0 && p[0] == '/'
}

// Eq reports whether p and o contain identical bytes.
func (p Path) Eq(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p begins with the path prefix pre. A prefix
// matches only on a path-component boundary: "/dev" is a prefix of
// "/dev/hda0" but not of "/device".
func (p Path) HasPrefix(pre Path) bool {
	if len(pre) > len(p) {
		return false
	}
	for i := range pre {
		if p[i] != pre[i] {
			return false
		}
	}
	if len(pre) == len(p) {
		return true
	}
	if pre.Eq(Root()) {
		return true
	}
	return p[len(pre)] == '/'
}

// Extend appends a '/' separator and p2 to p, returning a new Path.
func (p Path) Extend(p2 Path) Path {
	tmp := make(Path, len(p), len(p)+1+len(p2))
	copy(tmp, p)
	if len(tmp) == 0 || tmp[len(tmp)-1] != '/' {
		tmp = append(tmp, '/')
	}
	return append(tmp, p2...)
}

// ExtendStr is Extend taking a plain Go string.
func (p Path) ExtendStr(s string) Path {
	return p.Extend(Path(s))
}

// TrimPrefix removes the path-component prefix pre from p and returns the
// remainder. The root mount "/" is special-cased to return the whole path
// unchanged, since stripping it would otherwise discard the leading '/'
// every other lookup needs.
func (p Path) TrimPrefix(pre Path) Path {
	if !p.HasPrefix(pre) {
		return p
	}
	if pre.Eq(Root()) {
		return p
	}
	return p[len(pre):]
}

// Normalize converts a possibly relative path p to an absolute path given
// the current working directory cwd, by concatenation. Per the VFS resolution contract,
// "." / ".." reduction is not required and is not performed here.
func Normalize(p Path, cwd Path) Path {
	if p.IsAbsolute() {
		return p
	}
	if len(p) == 0 {
		return cwd
	}
	return cwd.Extend(p)
}

// String converts the Path to a Go string.
func (p Path) String() string {
	return string(p)
}

// IndexByte returns the index of the first occurrence of b in p, or -1.
func (p Path) IndexByte(b byte) int {
	for i, c := range p {
		if c == b {
			return i
		}
	}
	return -1
}
