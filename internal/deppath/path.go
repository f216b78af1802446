package deppath

import (
	"fmt"
	"strings"
)

// SegmentKind classifies one step of a path.
type SegmentKind int

const (
	// Field reads a named attribute, relationship or derived property.
	Field SegmentKind = iota + 1
	// Each fans out over every member of the collection reached so far.
	Each
	// Members depends on collection membership only. Always terminal.
	Members
)

// String returns the kind name for diagnostics.
func (k SegmentKind) String() string {
	switch k {
	case Field:
		return "field"
	case Each:
		return "@each"
	case Members:
		return "members"
	default:
		return fmt.Sprintf("SegmentKind(%d)", int(k))
	}
}

const (
	eachToken    = "@each"
	membersToken = "[]"
	lengthToken  = "length"
)

// Segment is one step of a parsed path.
type Segment struct {
	Kind SegmentKind
	// Name is the field name for Field segments and the source token
	// ("[]" or "length") for Members segments.
	Name string
}

func (s Segment) String() string {
	switch s.Kind {
	case Each:
		return eachToken
	case Members:
		if s.Name == "" {
			return membersToken
		}
		return s.Name
	default:
		return s.Name
	}
}

// Path is a parsed, brace-expanded dependency key.
type Path struct {
	Segments []Segment
}

// String renders the path back to its key form.
func (p Path) String() string {
	parts := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Head returns the first segment.
func (p Path) Head() Segment {
	return p.Segments[0]
}

// Rest returns the path without its first segment.
func (p Path) Rest() Path {
	return Path{Segments: p.Segments[1:]}
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.Segments)
}

// Fields returns the names of the Field segments in order.
func (p Path) Fields() []string {
	var out []string
	for _, s := range p.Segments {
		if s.Kind == Field {
			out = append(out, s.Name)
		}
	}
	return out
}

// ParseError describes a malformed dependency key.
type ParseError struct {
	Key string
	Pos int // byte offset into Key, or into its brace expansion
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("dependency key %q: %s at offset %d", e.Key, e.Msg, e.Pos)
}
