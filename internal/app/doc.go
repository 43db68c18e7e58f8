// Package app contains the core application logic. It defines the main App
// struct, its configuration, and the lifecycle from composed configuration to
// a finished reconstruction run, decoupled from any specific entrypoint.
package app
