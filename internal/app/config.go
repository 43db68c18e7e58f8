package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigName string   // named configuration composed from ConfigDir
	ConfigDir  string   // directory containing the yaml configuration tree
	Overrides  []string // key=value strings, applied above all config layers

	Strict      bool
	PrintConfig bool

	LogFormat    string
	LogLevel     string
	ProgressPort int
	WorkerCount  int
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigName == "" {
		return nil, errors.New("ConfigName is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 1 {
		return nil, errors.New("WorkerCount must be at least 1")
	}

	// Future validations for other fields can be added here.

	return &cfg, nil
}
