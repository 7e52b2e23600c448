package document

import (
	"strings"

	"github.com/nholden/verso/internal/domain"
)

// Step is one segment of a structural path: either a map key or a
// sequence element addressed by its identity value. Positional indices
// are never used, so reordering a sequence does not move paths.
type Step struct {
	Key  string
	Elem bool // true when Key is a sequence element identity
}

// Path addresses a node in a document. The string form reads
// "analyses[AN1].name": dots separate map keys, brackets select
// sequence elements by identity.
type Path []Step

// Key extends the path with a map-key step.
func (p Path) Key(k string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Step{Key: k})
}

// Elem extends the path with a sequence-element step.
func (p Path) Elem(identity string) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Step{Key: identity, Elem: true})
}

// String renders the canonical textual form of the path.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.Elem {
			b.WriteByte('[')
			b.WriteString(s.Key)
			b.WriteByte(']')
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Key)
	}
	return b.String()
}

// Root returns the first map key of the path, used for summarizing
// which top-level sections a diff touches.
func (p Path) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0].Key
}

// HasPrefix reports whether p starts with prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i, s := range prefix {
		if p[i] != s {
			return false
		}
	}
	return true
}

// Equal reports step-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// ParsePath parses the textual path form produced by Path.String.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, domain.Validationf("empty path")
	}
	var path Path
	i := 0
	for i < len(s) {
		switch s[i] {
		case '[':
			end := strings.IndexByte(s[i:], ']')
			if end <= 1 {
				return nil, domain.Validationf("unterminated element selector in path %q", s)
			}
			path = append(path, Step{Key: s[i+1 : i+end], Elem: true})
			i += end + 1
		case '.':
			i++
			if i >= len(s) {
				return nil, domain.Validationf("trailing dot in path %q", s)
			}
		default:
			end := strings.IndexAny(s[i:], ".[")
			if end == -1 {
				path = append(path, Step{Key: s[i:]})
				i = len(s)
			} else {
				path = append(path, Step{Key: s[i : i+end]})
				i += end
			}
		}
	}
	if len(path) == 0 {
		return nil, domain.Validationf("empty path %q", s)
	}
	return path, nil
}
