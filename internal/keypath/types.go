package keypath

// Segment represents a single component of a key path, e.g., `name[index]`.
type Segment struct {
	Name  string
	Index int // -1 indicates no index is present.
}

// NewSegment creates a new path segment without an index.
func NewSegment(name string) Segment {
	return Segment{Name: name, Index: -1}
}

// NewIndexedSegment creates a new path segment that includes a list index.
func NewIndexedSegment(name string, index int) Segment {
	return Segment{Name: name, Index: index}
}

// HasIndex returns true if the segment addresses a list element.
func (s Segment) HasIndex() bool {
	return s.Index != -1
}

// Path is the structured representation of a dotted configuration key path,
// broken into segments.
type Path struct {
	Segments []Segment
}
