/*
Package keypath provides a structured, type-safe representation for dotted
configuration key paths, based on the canonical format `group.key[index]`.

The format is defined as a dot-separated sequence of segments, where each
segment is a key name with an optional list index, e.g.,
`reconstruction.pre_process.nc[2]`.

This package enforces the path schema and centralizes all formatting and
parsing logic so that override handling and error reporting agree on one
canonical spelling.
*/
package keypath
