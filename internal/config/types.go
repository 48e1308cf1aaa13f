// Package config resolves, loads, validates, and defaults panelfront configuration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the fully materialized runtime configuration used by panelfront.
type Config struct {
	Module      string
	Coordinator CoordinatorConfig
	Transport   TransportConfig
	Render      RenderConfig
	Log         LogConfig
}

// CoordinatorConfig locates the panel coordinator.
type CoordinatorConfig struct {
	Host        string
	Port        int
	DialTimeout time.Duration
}

// Address returns host:port suitable for net.Dial.
func (c CoordinatorConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TransportConfig tunes the socket workers.
type TransportConfig struct {
	ReadChunkSize int
	FlushTimeout  time.Duration
}

// RenderConfig controls transcript output on the terminal.
type RenderConfig struct {
	Enable bool
	Width  int
	Plain  bool
}

// LogConfig controls the JSONL runtime log.
type LogConfig struct {
	Level string
}

// Warning is a non-fatal load/validation message.
type Warning struct {
	Message string
}
