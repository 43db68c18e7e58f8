package keypath

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// segmentRegex parses a single segment of a path, e.g., `name` or `name[1]`.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)(?:\[(\d+)\])?$`)

// Parse creates a new Path by parsing its canonical string representation.
func Parse(raw string) (*Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("key path cannot be empty")
	}

	path := &Path{}
	for _, segmentStr := range strings.Split(raw, ".") {
		if segmentStr == "" {
			return nil, fmt.Errorf("key path %q contains an empty segment", raw)
		}

		matches := segmentRegex.FindStringSubmatch(segmentStr)
		if matches == nil {
			return nil, fmt.Errorf("invalid key path segment: %q", segmentStr)
		}

		segment := NewSegment(matches[1])
		if len(matches) > 2 && matches[2] != "" {
			index, err := strconv.Atoi(matches[2])
			if err != nil {
				// Unreachable due to regex `\d+`
				return nil, fmt.Errorf("internal error parsing index: %w", err)
			}
			segment.Index = index
		}
		path.Segments = append(path.Segments, segment)
	}

	return path, nil
}
