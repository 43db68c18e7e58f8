package keypath

import (
	"fmt"
	"reflect"
	"strings"
)

// String serializes the Path into its canonical dotted representation.
func (p *Path) String() string {
	if p == nil {
		return ""
	}

	var sb strings.Builder
	for i, seg := range p.Segments {
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(seg.Name)
		if seg.Index != -1 {
			sb.WriteString(fmt.Sprintf("[%d]", seg.Index))
		}
	}

	return sb.String()
}

// Equal checks for deep equality between two Path pointers.
func (p *Path) Equal(other *Path) bool {
	if p == nil || other == nil {
		return p == other
	}
	return reflect.DeepEqual(p.Segments, other.Segments)
}

// Top returns the name of the first segment, or "" for an empty path. It is
// the top-level configuration group a path belongs to.
func (p *Path) Top() string {
	if p == nil || len(p.Segments) == 0 {
		return ""
	}
	return p.Segments[0].Name
}
