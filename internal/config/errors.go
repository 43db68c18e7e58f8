package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is the umbrella sentinel for every configuration failure.
// All typed errors in this package unwrap to it, so callers can gate on
// errors.Is(err, ErrConfiguration) without enumerating the taxonomy.
var ErrConfiguration = errors.New("configuration error")

// UnknownKeyError reports a strict-mode override addressing a key path that
// is absent from every configuration layer.
type UnknownKeyError struct {
	Path string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("override references unknown key %q", e.Path)
}

func (e *UnknownKeyError) Unwrap() error { return ErrConfiguration }

// MalformedOverrideError reports an override argument that is not of the
// form key=value.
type MalformedOverrideError struct {
	Arg    string
	Reason string
}

func (e *MalformedOverrideError) Error() string {
	return fmt.Sprintf("malformed override %q: %s", e.Arg, e.Reason)
}

func (e *MalformedOverrideError) Unwrap() error { return ErrConfiguration }

// DuplicateDefaultsError reports two defaults groups claiming the same
// configuration key ambiguously. Key is the top-level group the conflict
// falls under, Path the exact leaf, and Groups the two source layers. A
// group listed twice in one defaults list is reported with both Groups set
// to the same name.
type DuplicateDefaultsError struct {
	Key    string
	Path   string
	Groups [2]string
}

func (e *DuplicateDefaultsError) Error() string {
	if e.Groups[0] == e.Groups[1] {
		return fmt.Sprintf("defaults group %q listed more than once", e.Groups[0])
	}
	return fmt.Sprintf("defaults groups %q and %q both define %q", e.Groups[0], e.Groups[1], e.Path)
}

func (e *DuplicateDefaultsError) Unwrap() error { return ErrConfiguration }

// DefaultsCycleError reports a cycle in the defaults lists of composed
// configuration documents.
type DefaultsCycleError struct {
	Chain []string
}

func (e *DefaultsCycleError) Error() string {
	return fmt.Sprintf("defaults cycle: %s", strings.Join(e.Chain, " -> "))
}

func (e *DefaultsCycleError) Unwrap() error { return ErrConfiguration }

// UnknownGroupError reports a defaults entry naming a document that does not
// exist in the config directory.
type UnknownGroupError struct {
	Group string
	Dir   string
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("defaults group %q not found in %q", e.Group, e.Dir)
}

func (e *UnknownGroupError) Unwrap() error { return ErrConfiguration }

// ParseError reports an unreadable or syntactically invalid configuration
// document. It carries the underlying cause alongside the umbrella sentinel.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrConfiguration, e.Err} }
