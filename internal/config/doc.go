// Package config defines the format-agnostic configuration model for the
// application: layered documents composed through defaults lists, a pure
// deep-merge resolver with command-line overrides, and the provenance of
// every resolved value.
//
// The resolved tree is the single source of truth for the experiment
// descriptor. Concrete document loading lives in separate packages, such as
// yamlcfg for YAML directories.
package config
