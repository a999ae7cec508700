// Package path implements the JSON path grammar and projection/patch
// semantics used to address a location inside a TVar document (spec §4.4,
// §4.5): dot-separated keys, bracketed integer indices, and the
// digit-after-dot rewrite to bracket form.
package path

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the two segment shapes a Path can contain.
type Kind int

const (
	// Key addresses an object field.
	Key Kind = iota
	// Index addresses an array element.
	Index
)

// Segment is one step of a Path: either an object key or an array index.
type Segment struct {
	Kind  Kind
	Key   string
	Index int
}

// Path is the normalized, canonical form of a JSON path: a sequence of
// Segments reached from the document root.
type Path struct {
	Segments []Segment
}

// Root is the empty path, addressing the document itself.
var Root = Path{}

// IsRoot reports whether p addresses the document root.
func (p Path) IsRoot() bool {
	return len(p.Segments) == 0
}

// String renders p in canonical form: "$" followed by ".key" for object
// segments and "[n]" for array segments, e.g. "$.a.b[3].c".
func (p Path) String() string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range p.Segments {
		switch seg.Kind {
		case Key:
			b.WriteByte('.')
			b.WriteString(seg.Key)
		case Index:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// Normalize parses raw into a canonical Path. Accepted grammar (spec §4.4):
//
//   - "" or "$"           -> root
//   - dot-separated keys: "a.b.c"
//   - bracketed indices:  "[0]", "foo[2]", "a.b[3].c"
//   - digit segments directly after a dot are rewritten to bracket form:
//     "a.2.b" normalizes the same as "a[2].b"
//   - an optional leading "$." or "$" prefix is accepted and stripped
//
// Normalize is idempotent: Normalize(p.String()) == p for any Path p
// produced by a prior Normalize call.
func Normalize(raw string) (Path, error) {
	s := strings.TrimPrefix(raw, "$")
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return Root, nil
	}

	var segs []Segment
	i := 0
	for i < len(s) {
		if s[i] == '[' {
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return Path{}, fmt.Errorf("path: unterminated '[' in %q", raw)
			}
			numStr := s[i+1 : i+end]
			n, err := strconv.Atoi(numStr)
			if err != nil || n < 0 {
				return Path{}, fmt.Errorf("path: invalid index %q in %q", numStr, raw)
			}
			segs = append(segs, Segment{Kind: Index, Index: n})
			i += end + 1
			if i < len(s) && s[i] == '.' {
				i++
			}
			continue
		}

		j := i
		for j < len(s) && s[j] != '.' && s[j] != '[' {
			j++
		}
		token := s[i:j]
		if token == "" {
			return Path{}, fmt.Errorf("path: empty segment in %q", raw)
		}
		if isAllDigits(token) {
			n, err := strconv.Atoi(token)
			if err != nil {
				return Path{}, fmt.Errorf("path: invalid numeric segment %q in %q", token, raw)
			}
			segs = append(segs, Segment{Kind: Index, Index: n})
		} else {
			segs = append(segs, Segment{Kind: Key, Key: token})
		}
		i = j
		if i < len(s) && s[i] == '.' {
			i++
		}
	}

	return Path{Segments: segs}, nil
}

// MustNormalize is like Normalize but panics on error. For use with
// compile-time-known literal paths (tests, internal call sites).
func MustNormalize(raw string) Path {
	p, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
